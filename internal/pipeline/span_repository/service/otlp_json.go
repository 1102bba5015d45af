package service

import (
	"encoding/hex"
	"github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

const serviceNameAttribute = "service.name"

var jsonUnmarshaler = &ptrace.JSONUnmarshaler{}

// decodeRecord parses one OTLP-JSON document into typed spans.
func decodeRecord(record []byte) ([]model.Span, error) {
	traces, err := jsonUnmarshaler.UnmarshalTraces(record)
	if err != nil {
		return nil, err
	}
	return typedSpansFromTraces(traces), nil
}

func typedSpansFromTraces(traces ptrace.Traces) []model.Span {
	var typedSpans []model.Span
	resourceSpans := traces.ResourceSpans()
	for i := 0; i < resourceSpans.Len(); i++ {
		resourceSpan := resourceSpans.At(i)
		serviceName := getServiceName(resourceSpan.Resource())
		scopeSpans := resourceSpan.ScopeSpans()
		for j := 0; j < scopeSpans.Len(); j++ {
			spans := scopeSpans.At(j).Spans()
			for k := 0; k < spans.Len(); k++ {
				typedSpans = append(typedSpans, getTypedSpan(spans.At(k), serviceName))
			}
		}
	}
	return typedSpans
}

func getServiceName(resource pcommon.Resource) string {
	value, ok := resource.Attributes().Get(serviceNameAttribute)
	if !ok || value.Type() != pcommon.ValueTypeStr || value.Str() == "" {
		return model.UnknownService
	}
	return value.Str()
}

func getTypedSpan(span ptrace.Span, serviceName string) model.Span {
	traceId := span.TraceID()
	spanId := span.SpanID()
	parentSpanId := ""
	if parent := span.ParentSpanID(); !parent.IsEmpty() {
		parentSpanId = hex.EncodeToString(parent[:])
	}
	return model.Span{
		SpanID:        encodeSpanId(spanId),
		ParentSpanID:  parentSpanId,
		TraceID:       encodeTraceId(traceId),
		ServiceName:   serviceName,
		OperationName: span.Name(),
		Kind:          model.SpanKind(span.Kind()),
		StartTime:     span.StartTimestamp().AsTime(),
		EndTime:       span.EndTimestamp().AsTime(),
		Attributes:    getAttributes(span.Attributes()),
	}
}

func encodeTraceId(id pcommon.TraceID) string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

func encodeSpanId(id pcommon.SpanID) string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

func getAttributes(attributes pcommon.Map) map[string]string {
	typed := make(map[string]string, attributes.Len())
	attributes.Range(func(key string, value pcommon.Value) bool {
		typed[key] = value.AsString()
		return true
	})
	return typed
}
