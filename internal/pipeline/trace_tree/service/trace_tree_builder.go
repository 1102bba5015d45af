package service

import (
	"errors"
	"fmt"
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	repositoryModel "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	"sort"
)

var (
	ErrNoRootSpan       = errors.New("no span matches the workflow entry")
	ErrAmbiguousRoot    = errors.New("more than one span matches the workflow entry")
	ErrRejectedByFilter = errors.New("trace rejected by the validity filter")
	ErrUnknownStrategy  = errors.New("unknown validity filter strategy")
	ErrInvalidSpanCount = errors.New("expected span count must be positive")
)

type TraceTreeBuilder struct {
	entry  model.WorkflowEntry
	filter ValidityFilter
}

func NewTraceTreeBuilder(entry model.WorkflowEntry, filter ValidityFilter) *TraceTreeBuilder {
	if filter == nil {
		filter = AnyRootFilter{}
	}
	return &TraceTreeBuilder{
		entry:  entry,
		filter: filter,
	}
}

// Build indexes one trace and locates its workflow root, which must be unique. Spans whose parent
// is missing are kept.
func (tb *TraceTreeBuilder) Build(traceId string, spans repositoryModel.TraceSpans) (model.TraceTree, error) {
	tree := model.TraceTree{
		TraceID:            traceId,
		SpansByID:          make(map[string]spanModel.Span, len(spans)),
		ChildrenByParentID: make(map[string][]spanModel.Span),
	}

	roots := 0
	for spanId, span := range spans {
		tree.SpansByID[spanId] = span
		if span.ParentSpanID != "" {
			tree.ChildrenByParentID[span.ParentSpanID] = append(tree.ChildrenByParentID[span.ParentSpanID], span)
		}
		if tb.entry.Matches(span) {
			tree.Root = span
			roots++
		}
	}
	switch {
	case roots == 0:
		return model.TraceTree{}, fmt.Errorf("trace %s: %w", traceId, ErrNoRootSpan)
	case roots > 1:
		return model.TraceTree{}, fmt.Errorf("trace %s with %d matching spans: %w", traceId, roots, ErrAmbiguousRoot)
	}

	for _, children := range tree.ChildrenByParentID {
		sort.Slice(children, func(i, j int) bool {
			return startsBefore(children[i], children[j])
		})
	}

	if !tb.filter.Accept(tree) {
		return model.TraceTree{}, fmt.Errorf("trace %s with %d spans, %s: %w", traceId, tree.SpanCount(), tb.filter.Name(), ErrRejectedByFilter)
	}
	return tree, nil
}

func startsBefore(a, b spanModel.Span) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	return a.SpanID < b.SpanID
}
