package service

import (
	"fmt"
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	"sort"
	"strings"
)

// Render lists the spans of a trace ordered by start time with durations and offsets from the root.
func Render(tree model.TraceTree) string {
	spans := make([]spanModel.Span, 0, len(tree.SpansByID))
	for _, span := range tree.SpansByID {
		spans = append(spans, span)
	}
	sort.Slice(spans, func(i, j int) bool {
		return startsBefore(spans[i], spans[j])
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Trace ID: %s ---\n", tree.TraceID)
	for i, span := range spans {
		offset := float64(span.StartTime.Sub(tree.Root.StartTime).Nanoseconds()) / 1e6
		fmt.Fprintf(
			&sb,
			"#%-3d | %-6s | Service: %-25s | Operation: %-30s | Duration: %.2f ms | Start Offset: %.2f ms\n",
			i+1,
			span.Kind,
			span.ServiceName,
			span.OperationName,
			span.DurationMillis(),
			offset,
		)
	}
	return sb.String()
}
