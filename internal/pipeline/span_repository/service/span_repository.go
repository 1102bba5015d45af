package service

import (
	"bytes"
	"errors"
	"fmt"
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/span_repository/model"
	"go.uber.org/zap"
	"sync"
)

var ErrMalformedRecord = errors.New("malformed trace record")

// SpanRepository groups spans by trace id. Spans are unique by span id within a trace, the
// last write wins.
type SpanRepository interface {
	IngestRecord(record []byte) error
	WriteToBuffer(spans []spanModel.Span)
	Snapshot() model.Snapshot
	Stats() model.IngestionStats
	Reset()
}

type SpanRepositoryImpl struct {
	traces map[string]model.TraceSpans
	stats  model.IngestionStats
	mu     sync.RWMutex
	logger *zap.Logger
}

func NewSpanRepository(logger *zap.Logger) *SpanRepositoryImpl {
	return &SpanRepositoryImpl{
		traces: make(map[string]model.TraceSpans),
		logger: logger,
	}
}

// Ingest builds a snapshot from independent OTLP-JSON records, skipping the ones that fail to parse.
func Ingest(records [][]byte, logger *zap.Logger) (model.Snapshot, model.IngestionStats) {
	repository := NewSpanRepository(logger)
	for _, record := range records {
		if err := repository.IngestRecord(record); err != nil {
			logger.Debug("Skipping trace record", zap.Error(err))
		}
	}
	return repository.Snapshot(), repository.Stats()
}

// IngestRecord parses one OTLP-JSON record. Blank records are ignored.
func (sr *SpanRepositoryImpl) IngestRecord(record []byte) error {
	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return nil
	}
	spans, err := decodeRecord(record)
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.stats.RecordsRead++
	if err != nil {
		sr.stats.RecordsSkipped++
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	sr.addSpans(spans)
	return nil
}

// WriteToBuffer adds already typed spans, e.g. from the OTLP receiver or the span store.
func (sr *SpanRepositoryImpl) WriteToBuffer(spans []spanModel.Span) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.addSpans(spans)
}

func (sr *SpanRepositoryImpl) addSpans(spans []spanModel.Span) {
	for _, span := range spans {
		if err := span.Validate(); err != nil {
			sr.stats.SpansRejected++
			sr.logger.Debug(
				"Rejecting span",
				zap.String("trace_id", span.TraceID),
				zap.String("span_id", span.SpanID),
				zap.Error(err),
			)
			continue
		}
		trace, ok := sr.traces[span.TraceID]
		if !ok {
			trace = make(model.TraceSpans)
			sr.traces[span.TraceID] = trace
		}
		trace[span.SpanID] = span
		sr.stats.SpansAccepted++
	}
}

// Snapshot returns a copy that later writes do not affect.
func (sr *SpanRepositoryImpl) Snapshot() model.Snapshot {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	snapshot := make(model.Snapshot, len(sr.traces))
	for traceId, spans := range sr.traces {
		copied := make(model.TraceSpans, len(spans))
		for spanId, span := range spans {
			copied[spanId] = span
		}
		snapshot[traceId] = copied
	}
	return snapshot
}

func (sr *SpanRepositoryImpl) Stats() model.IngestionStats {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.stats
}

func (sr *SpanRepositoryImpl) Reset() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.traces = make(map[string]model.TraceSpans)
	sr.stats = model.IngestionStats{}
}
