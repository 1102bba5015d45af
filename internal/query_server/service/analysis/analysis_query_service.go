package analysis

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/cache"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/span_store"
	"github.com/Avi18971911/phasefit/internal/metrics"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	analysisService "github.com/Avi18971911/phasefit/internal/pipeline/analysis/service"
	repositoryService "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/service"
	treeModel "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	treeService "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/service"
	"go.uber.org/zap"
	"strings"
	"time"
)

const timeout = 60 * time.Second

type AnalysisRequest struct {
	EntryService      string
	EntryOperation    string
	E2ECeilingMillis  float64
	FilterStrategy    string
	ExpectedSpanCount int
	Window            span_store.TimeWindow
}

// CacheKey normalizes the request so that equivalent requests share a cached result.
func (r AnalysisRequest) CacheKey() string {
	return fmt.Sprintf(
		"%s|%s|%g|%s|%d|%d|%d",
		strings.TrimSpace(r.EntryService),
		strings.TrimSpace(r.EntryOperation),
		r.E2ECeilingMillis,
		r.filterStrategy(),
		r.ExpectedSpanCount,
		unixNanos(r.Window.Start),
		unixNanos(r.Window.End),
	)
}

func (r AnalysisRequest) filterStrategy() string {
	strategy := strings.ToLower(strings.TrimSpace(r.FilterStrategy))
	if strategy == "" {
		return treeService.AnyRootStrategy
	}
	return strategy
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// Defaults carries the settings the query server applies to every request.
type Defaults struct {
	SegmentThreshold time.Duration
	MaxErlangPhases  int
	Workers          int
}

type AnalysisQueryService interface {
	// Analyze returns the analysis of the spans in the request window and whether it came from the cache.
	Analyze(ctx context.Context, request AnalysisRequest) (*model.AnalysisResult, bool, error)
}

type AnalysisQueryServiceImpl struct {
	store    span_store.SpanStore
	cache    cache.ResultCache[*model.AnalysisResult]
	defaults Defaults
	metrics  *metrics.PipelineMetrics
	logger   *zap.Logger
}

func NewAnalysisQueryService(
	store span_store.SpanStore,
	resultCache cache.ResultCache[*model.AnalysisResult],
	defaults Defaults,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *zap.Logger,
) *AnalysisQueryServiceImpl {
	return &AnalysisQueryServiceImpl{
		store:    store,
		cache:    resultCache,
		defaults: defaults,
		metrics:  pipelineMetrics,
		logger:   logger,
	}
}

func (aqs *AnalysisQueryServiceImpl) Analyze(
	ctx context.Context,
	request AnalysisRequest,
) (*model.AnalysisResult, bool, error) {
	key := request.CacheKey()
	cached, err := aqs.cache.Get(key)
	if err == nil {
		aqs.logger.Debug("Serving cached analysis", zap.String("run_id", cached.RunID))
		return cached, true, nil
	}
	if !errors.Is(err, cache.ErrKeyNotFound) {
		aqs.logger.Warn("Failed to read analysis cache", zap.Error(err))
	}

	as, err := analysisService.NewAnalysisService(
		analysisService.AnalysisConfig{
			Entry: treeModel.WorkflowEntry{
				ServiceName:   strings.TrimSpace(request.EntryService),
				OperationName: strings.TrimSpace(request.EntryOperation),
			},
			E2ECeilingMillis:  request.E2ECeilingMillis,
			FilterStrategy:    request.filterStrategy(),
			ExpectedSpanCount: request.ExpectedSpanCount,
			SegmentThreshold:  aqs.defaults.SegmentThreshold,
			MaxErlangPhases:   aqs.defaults.MaxErlangPhases,
			Workers:           aqs.defaults.Workers,
		},
		aqs.metrics,
		aqs.logger,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to configure analysis: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	spans, err := aqs.store.LoadSpans(queryCtx, request.Window)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load spans: %w", err)
	}
	repository := repositoryService.NewSpanRepository(aqs.logger)
	repository.WriteToBuffer(spans)

	result, err := as.Analyze(queryCtx, repository.Snapshot())
	if err != nil {
		return nil, false, fmt.Errorf("failed to analyze spans: %w", err)
	}
	if err := aqs.cache.Put(key, result); err != nil {
		aqs.logger.Warn("Failed to cache analysis", zap.String("run_id", result.RunID), zap.Error(err))
	}
	return result, false, nil
}
