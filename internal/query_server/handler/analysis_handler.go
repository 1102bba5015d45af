package handler

import (
	"encoding/json"
	"errors"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/span_store"
	"github.com/Avi18971911/phasefit/internal/query_server/service/analysis"
	"go.uber.org/zap"
	"io"
	"net/http"
	"strings"
)

var (
	ErrNoEntryService      = errors.New("no entry_service provided")
	ErrNoEntryOperation    = errors.New("no entry_operation provided")
	ErrNegativeCeiling     = errors.New("e2e_ceiling_ms must not be negative")
	ErrUnknownStrategy     = errors.New("filter_strategy must be any_root or exact_span_count")
	ErrNoExpectedSpanCount = errors.New("expected_span_count must be positive for exact_span_count")
	ErrInvalidWindow       = errors.New("start_time must be before end_time")
)

// AnalysisHandler creates a handler that fits latency models to the spans of a workflow.
// @Summary Analyze the traces of a workflow.
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body AnalysisRequestDTO true "The workflow entry and span window"
// @Success 200 {object} AnalysisResponseDTO "Fitted statistics of the workflow"
// @Failure 400 {object} ErrorMessage "Invalid request"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /analysis [post]
func AnalysisHandler(
	s analysis.AnalysisQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info(
			"Received analysis request",
			zap.String("URL Path", r.URL.Path),
			zap.String("Method", r.Method),
		)
		defer func(Body io.ReadCloser) {
			if err := Body.Close(); err != nil {
				logger.Error("Error encountered when closing request body", zap.Error(err))
			}
		}(r.Body)

		var req AnalysisRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("Error encountered when decoding request body", zap.Error(err))
			HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
			return
		}
		if err := validateRequest(req); err != nil {
			logger.Error("Error encountered when validating request", zap.Error(err))
			HttpError(w, err.Error(), http.StatusBadRequest, logger)
			return
		}

		result, cached, err := s.Analyze(r.Context(), mapRequestDTOToModel(req))
		if err != nil {
			logger.Error("Error encountered when analyzing traces", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(AnalysisResponseDTO{Cached: cached, Result: result}); err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
		}
	}
}

func validateRequest(req AnalysisRequestDTO) error {
	if strings.TrimSpace(req.EntryService) == "" {
		return ErrNoEntryService
	}
	if strings.TrimSpace(req.EntryOperation) == "" {
		return ErrNoEntryOperation
	}
	if req.E2ECeilingMillis < 0 {
		return ErrNegativeCeiling
	}
	switch strings.ToLower(strings.TrimSpace(req.FilterStrategy)) {
	case "", "any_root":
	case "exact_span_count":
		if req.ExpectedSpanCount <= 0 {
			return ErrNoExpectedSpanCount
		}
	default:
		return ErrUnknownStrategy
	}
	if req.StartTime != nil && req.EndTime != nil && !req.StartTime.Before(*req.EndTime) {
		return ErrInvalidWindow
	}
	return nil
}

func mapRequestDTOToModel(req AnalysisRequestDTO) analysis.AnalysisRequest {
	var window span_store.TimeWindow
	if req.StartTime != nil {
		window.Start = *req.StartTime
	}
	if req.EndTime != nil {
		window.End = *req.EndTime
	}
	return analysis.AnalysisRequest{
		EntryService:      req.EntryService,
		EntryOperation:    req.EntryOperation,
		E2ECeilingMillis:  req.E2ECeilingMillis,
		FilterStrategy:    req.FilterStrategy,
		ExpectedSpanCount: req.ExpectedSpanCount,
		Window:            window,
	}
}
