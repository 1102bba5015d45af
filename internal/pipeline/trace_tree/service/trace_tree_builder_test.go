package service

import (
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	repositoryModel "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

var entry = model.WorkflowEntry{ServiceName: "users-service", OperationName: "POST /reserve"}

func newSpan(spanId, parentId, service, operation string, kind spanModel.SpanKind, startMs, endMs float64) spanModel.Span {
	base := time.Unix(1700000000, 0)
	return spanModel.Span{
		TraceID:       "trace",
		SpanID:        spanId,
		ParentSpanID:  parentId,
		ServiceName:   service,
		OperationName: operation,
		Kind:          kind,
		StartTime:     base.Add(time.Duration(startMs * float64(time.Millisecond))),
		EndTime:       base.Add(time.Duration(endMs * float64(time.Millisecond))),
	}
}

func traceSpans(spans ...spanModel.Span) repositoryModel.TraceSpans {
	result := make(repositoryModel.TraceSpans)
	for _, span := range spans {
		result[span.SpanID] = span
	}
	return result
}

func TestTraceTreeBuilder_Build(t *testing.T) {
	spans := traceSpans(
		newSpan("root", "", "users-service", "POST /reserve", spanModel.SpanKindServer, 0, 50),
		newSpan("c2", "root", "users-service", "POST", spanModel.SpanKindClient, 20, 30),
		newSpan("c1", "root", "users-service", "GET", spanModel.SpanKindClient, 5, 15),
		newSpan("s1", "c1", "catalog-service", "GET /items", spanModel.SpanKindServer, 6, 14),
		newSpan("orphan", "missing", "billing-service", "charge", spanModel.SpanKindServer, 40, 45),
	)

	t.Run("should index spans and order children by start time", func(t *testing.T) {
		tree, err := NewTraceTreeBuilder(entry, nil).Build("trace", spans)
		require.NoError(t, err)
		assert.Equal(t, "root", tree.Root.SpanID)
		assert.Equal(t, 5, tree.SpanCount())
		children := tree.ChildrenByParentID["root"]
		require.Len(t, children, 2)
		assert.Equal(t, "c1", children[0].SpanID)
		assert.Equal(t, "c2", children[1].SpanID)

		parent, ok := tree.Parent(tree.SpansByID["s1"])
		assert.True(t, ok)
		assert.Equal(t, "c1", parent.SpanID)
		_, ok = tree.Parent(tree.SpansByID["orphan"])
		assert.False(t, ok)
	})

	t.Run("Returns error if no span matches the workflow entry", func(t *testing.T) {
		other := model.WorkflowEntry{ServiceName: "users-service", OperationName: "GET /users"}
		_, err := NewTraceTreeBuilder(other, nil).Build("trace", spans)
		assert.ErrorIs(t, err, ErrNoRootSpan)
	})

	t.Run("should only accept a SERVER span as root", func(t *testing.T) {
		clientOnly := traceSpans(newSpan("root", "", "users-service", "POST /reserve", spanModel.SpanKindClient, 0, 50))
		_, err := NewTraceTreeBuilder(entry, nil).Build("trace", clientOnly)
		assert.ErrorIs(t, err, ErrNoRootSpan)
	})

	t.Run("Returns error if more than one span matches the workflow entry", func(t *testing.T) {
		retried := traceSpans(
			newSpan("late", "", "users-service", "POST /reserve", spanModel.SpanKindServer, 10, 50),
			newSpan("early", "", "users-service", "POST /reserve", spanModel.SpanKindServer, 0, 50),
		)
		_, err := NewTraceTreeBuilder(entry, nil).Build("trace", retried)
		assert.ErrorIs(t, err, ErrAmbiguousRoot)
	})

	t.Run("should reject traces with an unexpected span count", func(t *testing.T) {
		filter, err := NewValidityFilter(ExactSpanCountStrategy, 17)
		require.NoError(t, err)
		_, err = NewTraceTreeBuilder(entry, filter).Build("trace", spans)
		assert.ErrorIs(t, err, ErrRejectedByFilter)

		filter, err = NewValidityFilter(ExactSpanCountStrategy, 5)
		require.NoError(t, err)
		_, err = NewTraceTreeBuilder(entry, filter).Build("trace", spans)
		assert.NoError(t, err)
	})
}

func TestNewValidityFilter(t *testing.T) {
	t.Run("should default to any root", func(t *testing.T) {
		filter, err := NewValidityFilter("", 0)
		require.NoError(t, err)
		assert.Equal(t, AnyRootStrategy, filter.Name())
	})

	t.Run("Returns error if the strategy is unknown", func(t *testing.T) {
		_, err := NewValidityFilter("most_spans", 0)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("Returns error if the expected span count is not positive", func(t *testing.T) {
		_, err := NewValidityFilter(ExactSpanCountStrategy, 0)
		assert.ErrorIs(t, err, ErrInvalidSpanCount)
	})
}

func TestRender(t *testing.T) {
	spans := traceSpans(
		newSpan("root", "", "users-service", "POST /reserve", spanModel.SpanKindServer, 0, 50),
		newSpan("c1", "root", "users-service", "GET", spanModel.SpanKindClient, 5, 15),
	)
	tree, err := NewTraceTreeBuilder(entry, nil).Build("abc", spans)
	require.NoError(t, err)

	rendered := Render(tree)
	lines := strings.Split(strings.TrimSpace(rendered), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "--- Trace ID: abc ---", lines[0])
	assert.Contains(t, lines[1], "Operation: POST /reserve")
	assert.Contains(t, lines[1], "Duration: 50.00 ms")
	assert.Contains(t, lines[2], "CLIENT")
	assert.Contains(t, lines[2], "Start Offset: 5.00 ms")
}
