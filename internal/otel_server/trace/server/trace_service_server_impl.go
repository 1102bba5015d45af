package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/db/write_buffer"
	"github.com/Avi18971911/phasefit/internal/metrics"
	"github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonV1 "go.opentelemetry.io/proto/otlp/common/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"strconv"
	"time"
)

const serviceNameAttribute = "service.name"

// TraceServiceServerImpl receives OTLP trace exports and fans the typed spans out to every sink.
type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	sinks   []write_buffer.DatabaseWriteBuffer[model.Span]
	metrics *metrics.PipelineMetrics
	logger  *zap.Logger
}

func NewTraceServiceServerImpl(
	logger *zap.Logger,
	pipelineMetrics *metrics.PipelineMetrics,
	sinks ...write_buffer.DatabaseWriteBuffer[model.Span],
) *TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl", zap.Int("sink_count", len(sinks)))
	return &TraceServiceServerImpl{
		sinks:   sinks,
		metrics: pipelineMetrics,
		logger:  logger,
	}
}

func (tss *TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	accepted, rejected := 0, 0
	for _, resourceSpan := range req.GetResourceSpans() {
		serviceName := getServiceName(resourceSpan)
		if serviceName == model.UnknownService {
			tss.logger.Warn("Service name not found in resource span")
		}

		var typedSpans []model.Span
		for _, span := range getTypedSpans(resourceSpan, serviceName) {
			if err := span.Validate(); err != nil {
				rejected++
				tss.logger.Debug("Rejected span", zap.String("span_id", span.SpanID), zap.Error(err))
				continue
			}
			typedSpans = append(typedSpans, span)
		}
		if len(typedSpans) == 0 {
			continue
		}
		accepted += len(typedSpans)
		for _, sink := range tss.sinks {
			sink.WriteToBuffer(typedSpans)
		}
	}

	tss.metrics.SpansReceived(accepted)
	tss.metrics.RecordsSkipped(rejected)
	return &protoTrace.ExportTraceServiceResponse{}, nil
}

func getServiceName(resourceSpan *v1.ResourceSpans) string {
	for _, attr := range resourceSpan.GetResource().GetAttributes() {
		if attr.GetKey() == serviceNameAttribute && attr.GetValue().GetStringValue() != "" {
			return attr.GetValue().GetStringValue()
		}
	}
	return model.UnknownService
}

func getTypedSpans(resourceSpan *v1.ResourceSpans, serviceName string) []model.Span {
	var typedSpans []model.Span
	for _, scopeSpan := range resourceSpan.GetScopeSpans() {
		for _, span := range scopeSpan.GetSpans() {
			typedSpans = append(typedSpans, getTypedSpan(span, serviceName))
		}
	}
	return typedSpans
}

func getTypedSpan(span *v1.Span, serviceName string) model.Span {
	traceId := hex.EncodeToString(span.GetTraceId())
	spanId := hex.EncodeToString(span.GetSpanId())
	return model.Span{
		Id:            generateDocumentId(traceId, spanId),
		SpanID:        spanId,
		ParentSpanID:  hex.EncodeToString(span.GetParentSpanId()),
		TraceID:       traceId,
		ServiceName:   serviceName,
		OperationName: span.GetName(),
		Kind:          model.SpanKind(span.GetKind()),
		StartTime:     time.Unix(0, int64(span.GetStartTimeUnixNano())).UTC(),
		EndTime:       time.Unix(0, int64(span.GetEndTimeUnixNano())).UTC(),
		Attributes:    getAttributes(span.GetAttributes()),
	}
}

func getAttributes(attributes []*commonV1.KeyValue) map[string]string {
	typed := make(map[string]string, len(attributes))
	for _, attribute := range attributes {
		typed[attribute.GetKey()] = anyValueString(attribute.GetValue())
	}
	return typed
}

func anyValueString(value *commonV1.AnyValue) string {
	switch v := value.GetValue().(type) {
	case *commonV1.AnyValue_StringValue:
		return v.StringValue
	case *commonV1.AnyValue_BoolValue:
		return strconv.FormatBool(v.BoolValue)
	case *commonV1.AnyValue_IntValue:
		return strconv.FormatInt(v.IntValue, 10)
	case *commonV1.AnyValue_DoubleValue:
		return strconv.FormatFloat(v.DoubleValue, 'g', -1, 64)
	case *commonV1.AnyValue_BytesValue:
		return hex.EncodeToString(v.BytesValue)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// generateDocumentId keeps re-exported spans idempotent in the span index.
func generateDocumentId(traceId, spanId string) string {
	hash := sha256.Sum256([]byte(traceId + ":" + spanId))
	return hex.EncodeToString(hash[:])
}
