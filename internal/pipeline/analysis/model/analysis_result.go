package model

import (
	distributionModel "github.com/Avi18971911/phasefit/internal/pipeline/distribution/model"
	statisticsModel "github.com/Avi18971911/phasefit/internal/pipeline/statistics/model"
	treeModel "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	"time"
)

// FittedStatistics carries either a distribution or the reason none could be fitted.
type FittedStatistics struct {
	statisticsModel.Statistics
	Distribution *distributionModel.FittedDistribution `json:"distribution,omitempty"`
	FitError     string                                `json:"fit_error,omitempty"`
}

type WorkflowDescription struct {
	Entry             treeModel.WorkflowEntry `json:"entry"`
	E2ECeilingMillis  float64                 `json:"e2e_ceiling_ms"`
	FilterStrategy    string                  `json:"filter_strategy"`
	ExpectedSpanCount int                     `json:"expected_span_count,omitempty"`
}

// AnalysisResult is the latency model of one workflow. E2EStatistics is nil when no trace qualified.
type AnalysisResult struct {
	RunID                     string                                       `json:"run_id"`
	GeneratedAt               time.Time                                    `json:"generated_at"`
	Workflow                  WorkflowDescription                          `json:"workflow"`
	TraceCount                int                                          `json:"trace_count"`
	FilteredOutTraces         int                                          `json:"filtered_out_traces"`
	NoRootTraces              int                                          `json:"no_root_traces"`
	InvalidTraces             int                                          `json:"invalid_traces"`
	E2EStatistics             *FittedStatistics                            `json:"e2e_statistics"`
	ServiceTotalStatistics    map[string]FittedStatistics                  `json:"service_total_statistics"`
	GranularSegmentStatistics map[string]map[string]FittedStatistics       `json:"granular_segment_statistics"`
	OperationStatistics       map[string]statisticsModel.Statistics        `json:"operation_statistics"`
	NetworkLatencyStatistics  map[string]statisticsModel.LatencyStatistics `json:"network_latency_statistics"`
	E2EDurations              []float64                                    `json:"e2e_durations"`
}
