package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	"github.com/Avi18971911/phasefit/internal/query_server/service/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeQueryService struct {
	requests []analysis.AnalysisRequest
	cached   bool
	err      error
}

func (fs *fakeQueryService) Analyze(_ context.Context, request analysis.AnalysisRequest) (*model.AnalysisResult, bool, error) {
	fs.requests = append(fs.requests, request)
	if fs.err != nil {
		return nil, false, fs.err
	}
	return &model.AnalysisResult{RunID: "run-1", TraceCount: 2}, fs.cached, nil
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analysis", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalysisHandler(t *testing.T) {
	t.Run("should map the request and return the result", func(t *testing.T) {
		fs := &fakeQueryService{cached: true}
		rec := post(t, AnalysisHandler(fs, zap.NewNop()), `{
			"entry_service": "users-service",
			"entry_operation": "POST /reserve",
			"e2e_ceiling_ms": 170,
			"filter_strategy": "exact_span_count",
			"expected_span_count": 3,
			"start_time": "2024-01-01T00:00:00Z",
			"end_time": "2024-01-02T00:00:00Z"
		}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var res AnalysisResponseDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.True(t, res.Cached)
		assert.Equal(t, "run-1", res.Result.RunID)

		require.Len(t, fs.requests, 1)
		request := fs.requests[0]
		assert.Equal(t, "users-service", request.EntryService)
		assert.Equal(t, 170.0, request.E2ECeilingMillis)
		assert.Equal(t, 3, request.ExpectedSpanCount)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), request.Window.Start)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), request.Window.End)
	})

	t.Run("Returns error if the body is not json", func(t *testing.T) {
		fs := &fakeQueryService{}
		rec := post(t, AnalysisHandler(fs, zap.NewNop()), `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, fs.requests)
	})

	invalid := map[string]struct {
		body string
		err  error
	}{
		"missing service":     {`{"entry_operation":"GET"}`, ErrNoEntryService},
		"missing operation":   {`{"entry_service":"svc"}`, ErrNoEntryOperation},
		"negative ceiling":    {`{"entry_service":"svc","entry_operation":"GET","e2e_ceiling_ms":-1}`, ErrNegativeCeiling},
		"unknown strategy":    {`{"entry_service":"svc","entry_operation":"GET","filter_strategy":"latest"}`, ErrUnknownStrategy},
		"missing span count":  {`{"entry_service":"svc","entry_operation":"GET","filter_strategy":"exact_span_count"}`, ErrNoExpectedSpanCount},
		"inverted time range": {`{"entry_service":"svc","entry_operation":"GET","start_time":"2024-01-02T00:00:00Z","end_time":"2024-01-01T00:00:00Z"}`, ErrInvalidWindow},
	}
	for name, tc := range invalid {
		t.Run("Returns error if the request has a "+name, func(t *testing.T) {
			fs := &fakeQueryService{}
			rec := post(t, AnalysisHandler(fs, zap.NewNop()), tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var res ErrorMessage
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
			assert.Equal(t, tc.err.Error(), res.Message)
			assert.Empty(t, fs.requests)
		})
	}

	t.Run("Returns error if the analysis fails", func(t *testing.T) {
		fs := &fakeQueryService{err: errors.New("elasticsearch unavailable")}
		rec := post(t, AnalysisHandler(fs, zap.NewNop()), `{"entry_service":"svc","entry_operation":"GET"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var res ErrorMessage
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Equal(t, "Internal server error", res.Message)
	})
}
