package span_store

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/client"
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"go.uber.org/zap"
	"time"
)

type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

type SpanStore interface {
	// LoadSpans returns every span whose start time falls in the window, ordered by start time
	// and span id. A zero window loads the whole index.
	LoadSpans(ctx context.Context, window TimeWindow) ([]spanModel.Span, error)
}

type SpanStoreImpl struct {
	client   client.PhasefitClient
	index    string
	pageSize int
	logger   *zap.Logger
}

func NewSpanStore(phasefitClient client.PhasefitClient, index string, pageSize int, logger *zap.Logger) *SpanStoreImpl {
	if pageSize <= 0 {
		pageSize = client.SearchResultSize
	}
	return &SpanStoreImpl{
		client:   phasefitClient,
		index:    index,
		pageSize: pageSize,
		logger:   logger,
	}
}

func (ss *SpanStoreImpl) LoadSpans(ctx context.Context, window TimeWindow) ([]spanModel.Span, error) {
	request := client.SearchAfterRequest{
		Query: buildWindowQuery(window),
		Sort: []map[string]interface{}{
			{"start_time": map[string]string{"order": "asc"}},
			{"span_id": map[string]string{"order": "asc"}},
		},
		Index: ss.index,
		Size:  ss.pageSize,
	}

	var spans []spanModel.Span
	pages := 0
	for {
		hits, err := ss.client.SearchAfter(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %d of spans: %w", pages, err)
		}
		pages++
		for _, hit := range hits {
			var span spanModel.Span
			if err := json.Unmarshal(hit.Source, &span); err != nil {
				return nil, fmt.Errorf("failed to decode span %s: %w", hit.ID, err)
			}
			span.Id = hit.ID
			spans = append(spans, span)
		}
		if len(hits) < ss.pageSize || len(hits[len(hits)-1].Sort) == 0 {
			break
		}
		request.SearchAfter = hits[len(hits)-1].Sort
	}

	ss.logger.Info(
		"Loaded spans from Elasticsearch",
		zap.String("index", ss.index),
		zap.Int("span_count", len(spans)),
		zap.Int("pages", pages),
	)
	return spans, nil
}

func buildWindowQuery(window TimeWindow) map[string]interface{} {
	if window.IsZero() {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	bounds := map[string]interface{}{}
	if !window.Start.IsZero() {
		bounds["gte"] = window.Start.UTC().Format(time.RFC3339Nano)
	}
	if !window.End.IsZero() {
		bounds["lt"] = window.End.UTC().Format(time.RFC3339Nano)
	}
	return map[string]interface{}{
		"range": map[string]interface{}{
			"start_time": bounds,
		},
	}
}
