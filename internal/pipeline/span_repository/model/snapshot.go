package model

import (
	"github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"sort"
)

// TraceSpans maps span id to span for one trace.
type TraceSpans map[string]model.Span

// Snapshot maps trace id to the spans of that trace.
type Snapshot map[string]TraceSpans

func (s Snapshot) SpanCount() int {
	count := 0
	for _, spans := range s {
		count += len(spans)
	}
	return count
}

// TraceIDs returns the trace ids in ascending order.
func (s Snapshot) TraceIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type IngestionStats struct {
	RecordsRead    int `json:"records_read"`
	RecordsSkipped int `json:"records_skipped"`
	SpansAccepted  int `json:"spans_accepted"`
	SpansRejected  int `json:"spans_rejected"`
}
