package router

import (
	"github.com/Avi18971911/phasefit/internal/query_server/handler"
	"github.com/Avi18971911/phasefit/internal/query_server/service/analysis"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"net/http"
)

func CreateRouter(
	analysisQueryService analysis.AnalysisQueryService,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle(
		"/analysis", handler.AnalysisHandler(
			analysisQueryService,
			logger,
		),
	).Methods("POST")

	r.Handle(
		"/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	).Methods("GET")

	return r
}
