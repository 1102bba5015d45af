package handler

import (
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	"time"
)

// AnalysisRequestDTO selects the workflow and the span window to analyze
// @swagger:model AnalysisRequestDTO
type AnalysisRequestDTO struct {
	// Service name of the workflow entry span
	EntryService string `json:"entry_service"`
	// Operation name of the workflow entry span
	EntryOperation string `json:"entry_operation"`
	// Traces longer than this many milliseconds are dropped, 0 keeps every trace
	E2ECeilingMillis float64 `json:"e2e_ceiling_ms,omitempty"`
	// any_root (default) or exact_span_count
	FilterStrategy string `json:"filter_strategy,omitempty"`
	// Span count required by exact_span_count
	ExpectedSpanCount int `json:"expected_span_count,omitempty"`
	// Only spans starting at or after this time, RFC 3339
	StartTime *time.Time `json:"start_time,omitempty"`
	// Only spans starting before this time, RFC 3339
	EndTime *time.Time `json:"end_time,omitempty"`
}

// AnalysisResponseDTO wraps the analysis result
// @swagger:model AnalysisResponseDTO
type AnalysisResponseDTO struct {
	// Whether the result was served from the cache
	Cached bool `json:"cached"`
	// The fitted statistics of the workflow
	Result *model.AnalysisResult `json:"result"`
}
