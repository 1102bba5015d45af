package service

import (
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/segment/model"
	"sort"
	"time"
)

// DefaultThreshold suppresses slivers caused by clock skew and overlapping calls.
const DefaultThreshold = 10 * time.Microsecond

type SegmentExtractor struct {
	thresholdNanos int64
}

// NewSegmentExtractor falls back to DefaultThreshold for an unset or negative threshold.
func NewSegmentExtractor(threshold time.Duration) *SegmentExtractor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SegmentExtractor{thresholdNanos: threshold.Nanoseconds()}
}

// Extract splits the span's interval around its direct, non-storage children, walked in start
// order. A span without external calls yields one segment covering its whole duration.
func (se *SegmentExtractor) Extract(span spanModel.Span, childrenByParentId map[string][]spanModel.Span) []model.Segment {
	externalCalls := externalCalls(childrenByParentId[span.SpanID])
	if len(externalCalls) == 0 {
		return []model.Segment{{
			Name:           model.FullInternalExecutionSegment,
			DurationMillis: nanosToMillis(span.DurationNanos()),
		}}
	}

	var segments []model.Segment
	cursor := span.StartTime.UnixNano()
	spanEnd := span.EndTime.UnixNano()
	for _, call := range externalCalls {
		// skewed children may start after the parent ends
		callStart := min(call.StartTime.UnixNano(), spanEnd)
		callEnd := call.EndTime.UnixNano()
		if gap := callStart - cursor; gap > se.thresholdNanos {
			segments = append(segments, model.Segment{
				Name:           model.ProcessingBeforeCalling(call.ServiceName, call.OperationName),
				DurationMillis: nanosToMillis(gap),
			})
			cursor = callEnd
		} else if callEnd > cursor {
			cursor = callEnd
		}
	}

	if trailing := spanEnd - cursor; trailing > se.thresholdNanos {
		segments = append(segments, model.Segment{
			Name:           model.FinalProcessingSegment,
			DurationMillis: nanosToMillis(trailing),
		})
	}
	return segments
}

// externalCalls drops storage calls, which count as the parent's own processing, and orders
// the rest by start time then span id.
func externalCalls(children []spanModel.Span) []spanModel.Span {
	calls := make([]spanModel.Span, 0, len(children))
	for _, child := range children {
		if !child.IsStorageCall() {
			calls = append(calls, child)
		}
	}
	sort.Slice(calls, func(i, j int) bool {
		if !calls[i].StartTime.Equal(calls[j].StartTime) {
			return calls[i].StartTime.Before(calls[j].StartTime)
		}
		return calls[i].SpanID < calls[j].SpanID
	})
	return calls
}

func nanosToMillis(nanos int64) float64 {
	return float64(nanos) / 1e6
}
