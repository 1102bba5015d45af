package model

import (
	"github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
)

// WorkflowEntry designates the SERVER span that starts the monitored workflow.
type WorkflowEntry struct {
	ServiceName   string `json:"service_name"`
	OperationName string `json:"operation_name"`
}

func (w WorkflowEntry) Matches(span model.Span) bool {
	return span.Kind == model.SpanKindServer &&
		span.ServiceName == w.ServiceName &&
		span.OperationName == w.OperationName
}

type TraceTree struct {
	TraceID   string
	Root      model.Span
	SpansByID map[string]model.Span
	// ChildrenByParentID lists the direct children of each span, ordered by start time then span id.
	ChildrenByParentID map[string][]model.Span
}

func (t TraceTree) SpanCount() int {
	return len(t.SpansByID)
}

func (t TraceTree) Parent(span model.Span) (model.Span, bool) {
	if span.IsRoot() {
		return model.Span{}, false
	}
	parent, ok := t.SpansByID[span.ParentSpanID]
	return parent, ok
}
