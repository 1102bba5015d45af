package router

import (
	"bytes"
	"context"
	"github.com/Avi18971911/phasefit/internal/metrics"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	"github.com/Avi18971911/phasefit/internal/query_server/service/analysis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubQueryService struct{}

func (stubQueryService) Analyze(context.Context, analysis.AnalysisRequest) (*model.AnalysisResult, bool, error) {
	return &model.AnalysisResult{RunID: "run"}, false, nil
}

func TestCreateRouter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics.NewPipelineMetrics(registry).SpansReceived(3)
	r := CreateRouter(stubQueryService{}, registry, zap.NewNop())

	t.Run("should route analysis requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"entry_service":"svc","entry_operation":"GET"}`)
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analysis", body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"run_id":"run"`)
	})

	t.Run("should expose prometheus metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "phasefit_spans_received_total 3")
	})

	t.Run("should reject other methods on the analysis route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
