package span_store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/client"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/model"
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"testing"
	"time"
)

type fakeClient struct {
	pages    [][]model.HitSource
	requests []client.SearchAfterRequest
	err      error
}

func (fc *fakeClient) BulkIndex(context.Context, []client.MetaMap, []client.DocumentMap, string) error {
	return nil
}

func (fc *fakeClient) SearchAfter(_ context.Context, request client.SearchAfterRequest) ([]model.HitSource, error) {
	fc.requests = append(fc.requests, request)
	if fc.err != nil {
		return nil, fc.err
	}
	if len(fc.requests) > len(fc.pages) {
		return nil, nil
	}
	return fc.pages[len(fc.requests)-1], nil
}

func hit(t *testing.T, spanId string, startNanos int64) model.HitSource {
	t.Helper()
	source, err := json.Marshal(spanModel.Span{
		SpanID:    spanId,
		TraceID:   "trace",
		StartTime: time.Unix(0, startNanos).UTC(),
		EndTime:   time.Unix(0, startNanos+1000).UTC(),
	})
	require.NoError(t, err)
	return model.HitSource{
		ID:     "doc-" + spanId,
		Source: source,
		Sort:   []json.RawMessage{json.RawMessage(fmt.Sprint(startNanos)), json.RawMessage(fmt.Sprintf("%q", spanId))},
	}
}

func TestSpanStoreImpl_LoadSpans(t *testing.T) {
	t.Run("should walk pages until a short page and resume after the last sort values", func(t *testing.T) {
		fc := &fakeClient{pages: [][]model.HitSource{
			{hit(t, "a", 1), hit(t, "b", 2)},
			{hit(t, "c", 3), hit(t, "d", 4)},
			{hit(t, "e", 5)},
		}}
		store := NewSpanStore(fc, "span_index", 2, zap.NewNop())

		spans, err := store.LoadSpans(context.Background(), TimeWindow{})
		require.NoError(t, err)
		require.Len(t, spans, 5)
		assert.Equal(t, "a", spans[0].SpanID)
		assert.Equal(t, "doc-e", spans[4].Id)

		require.Len(t, fc.requests, 3)
		assert.Empty(t, fc.requests[0].SearchAfter)
		assert.Equal(t, `"b"`, string(fc.requests[1].SearchAfter[1]))
		assert.Equal(t, "4", string(fc.requests[2].SearchAfter[0]))
		assert.Equal(t, "span_index", fc.requests[0].Index)
		assert.Contains(t, fc.requests[0].Query, "match_all")
	})

	t.Run("should stop after an empty page", func(t *testing.T) {
		fc := &fakeClient{pages: [][]model.HitSource{{hit(t, "a", 1), hit(t, "b", 2)}, {}}}
		spans, err := NewSpanStore(fc, "span_index", 2, zap.NewNop()).LoadSpans(context.Background(), TimeWindow{})
		require.NoError(t, err)
		assert.Len(t, spans, 2)
		assert.Len(t, fc.requests, 2)
	})

	t.Run("should restrict the start time to the window", func(t *testing.T) {
		fc := &fakeClient{}
		window := TimeWindow{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
		_, err := NewSpanStore(fc, "span_index", 0, zap.NewNop()).LoadSpans(context.Background(), window)
		require.NoError(t, err)

		require.Len(t, fc.requests, 1)
		assert.Equal(t, client.SearchResultSize, fc.requests[0].Size)
		bounds := fc.requests[0].Query["range"].(map[string]interface{})["start_time"].(map[string]interface{})
		assert.Equal(t, "2024-01-01T00:00:00Z", bounds["gte"])
		assert.Equal(t, "2024-01-02T00:00:00Z", bounds["lt"])
	})

	t.Run("Returns error if a page cannot be fetched", func(t *testing.T) {
		fc := &fakeClient{err: errors.New("connection refused")}
		_, err := NewSpanStore(fc, "span_index", 2, zap.NewNop()).LoadSpans(context.Background(), TimeWindow{})
		assert.ErrorContains(t, err, "connection refused")
	})
}
