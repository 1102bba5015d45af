package model

import (
	"errors"
	"fmt"
	"time"
)

type SpanKind int

const (
	SpanKindUnspecified SpanKind = 0
	SpanKindInternal    SpanKind = 1
	SpanKindServer      SpanKind = 2
	SpanKindClient      SpanKind = 3
	SpanKindProducer    SpanKind = 4
	SpanKindConsumer    SpanKind = 5
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindInternal:
		return "INTERNAL"
	case SpanKindServer:
		return "SERVER"
	case SpanKindClient:
		return "CLIENT"
	case SpanKindProducer:
		return "PRODUCER"
	case SpanKindConsumer:
		return "CONSUMER"
	default:
		return "UNSPECIFIED"
	}
}

const UnknownService = "unknown-service"

// DbSystemAttribute marks a span as a call into a storage layer.
const DbSystemAttribute = "db.system"

type Span struct {
	Id            string            `json:"_id,omitempty"`
	SpanID        string            `json:"span_id"`
	ParentSpanID  string            `json:"parent_span_id"`
	TraceID       string            `json:"trace_id"`
	ServiceName   string            `json:"service_name"`
	OperationName string            `json:"operation_name"`
	Kind          SpanKind          `json:"span_kind"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Attributes    map[string]string `json:"attributes"`
}

// DocumentID is the id the span is indexed under.
func (s Span) DocumentID() string {
	return s.Id
}

func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

func (s Span) DurationNanos() int64 {
	return s.EndTime.Sub(s.StartTime).Nanoseconds()
}

func (s Span) DurationMillis() float64 {
	return float64(s.DurationNanos()) / 1e6
}

func (s Span) IsStorageCall() bool {
	_, ok := s.Attributes[DbSystemAttribute]
	return ok
}

var (
	ErrMissingTraceId = errors.New("span has no trace id")
	ErrMissingSpanId  = errors.New("span has no span id")
	ErrEndBeforeStart = errors.New("span ends before it starts")
)

func (s Span) Validate() error {
	if s.TraceID == "" {
		return ErrMissingTraceId
	}
	if s.SpanID == "" {
		return ErrMissingSpanId
	}
	if s.EndTime.Before(s.StartTime) {
		return fmt.Errorf("span %s: %w", s.SpanID, ErrEndBeforeStart)
	}
	return nil
}
