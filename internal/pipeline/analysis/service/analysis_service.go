package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/metrics"
	aggregatorModel "github.com/Avi18971911/phasefit/internal/pipeline/aggregator/model"
	aggregatorService "github.com/Avi18971911/phasefit/internal/pipeline/aggregator/service"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	distributionModel "github.com/Avi18971911/phasefit/internal/pipeline/distribution/model"
	distributionService "github.com/Avi18971911/phasefit/internal/pipeline/distribution/service"
	segmentService "github.com/Avi18971911/phasefit/internal/pipeline/segment/service"
	repositoryModel "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/model"
	statisticsModel "github.com/Avi18971911/phasefit/internal/pipeline/statistics/model"
	statisticsService "github.com/Avi18971911/phasefit/internal/pipeline/statistics/service"
	treeModel "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	treeService "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"time"
)

var ErrMissingEntry = errors.New("workflow entry service and operation are required")

type AnalysisConfig struct {
	Entry             treeModel.WorkflowEntry
	E2ECeilingMillis  float64
	FilterStrategy    string
	ExpectedSpanCount int
	SegmentThreshold  time.Duration
	MaxErlangPhases   int
	Workers           int
}

func (c AnalysisConfig) Describe() model.WorkflowDescription {
	strategy := c.FilterStrategy
	if strategy == "" {
		strategy = treeService.AnyRootStrategy
	}
	return model.WorkflowDescription{
		Entry:             c.Entry,
		E2ECeilingMillis:  c.E2ECeilingMillis,
		FilterStrategy:    strategy,
		ExpectedSpanCount: c.ExpectedSpanCount,
	}
}

type AnalysisService struct {
	config      AnalysisConfig
	treeBuilder *treeService.TraceTreeBuilder
	aggregator  *aggregatorService.Aggregator
	fitter      *distributionService.Fitter
	metrics     *metrics.PipelineMetrics
	logger      *zap.Logger
}

func NewAnalysisService(
	config AnalysisConfig,
	pipelineMetrics *metrics.PipelineMetrics,
	logger *zap.Logger,
) (*AnalysisService, error) {
	if config.Entry.ServiceName == "" || config.Entry.OperationName == "" {
		return nil, ErrMissingEntry
	}
	filter, err := treeService.NewValidityFilter(config.FilterStrategy, config.ExpectedSpanCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create validity filter: %w", err)
	}
	extractor := segmentService.NewSegmentExtractor(config.SegmentThreshold)
	return &AnalysisService{
		config:      config,
		treeBuilder: treeService.NewTraceTreeBuilder(config.Entry, filter),
		aggregator:  aggregatorService.NewAggregator(extractor, config.E2ECeilingMillis, config.Workers, logger),
		fitter:      distributionService.NewFitter(config.MaxErlangPhases),
		metrics:     pipelineMetrics,
		logger:      logger,
	}, nil
}

// Analyze runs the whole pipeline over one snapshot. A series that cannot be fitted keeps its
// statistics and records the fit error instead of failing the run.
func (as *AnalysisService) Analyze(ctx context.Context, snapshot repositoryModel.Snapshot) (*model.AnalysisResult, error) {
	started := time.Now()
	result := &model.AnalysisResult{
		RunID:                     uuid.NewString(),
		GeneratedAt:               started.UTC(),
		Workflow:                  as.config.Describe(),
		ServiceTotalStatistics:    make(map[string]model.FittedStatistics),
		GranularSegmentStatistics: make(map[string]map[string]model.FittedStatistics),
		OperationStatistics:       make(map[string]statisticsModel.Statistics),
		NetworkLatencyStatistics:  make(map[string]statisticsModel.LatencyStatistics),
	}

	trees := make([]treeModel.TraceTree, 0, len(snapshot))
	for _, traceId := range snapshot.TraceIDs() {
		tree, err := as.treeBuilder.Build(traceId, snapshot[traceId])
		switch {
		case errors.Is(err, treeService.ErrNoRootSpan):
			result.NoRootTraces++
		case errors.Is(err, treeService.ErrAmbiguousRoot), errors.Is(err, treeService.ErrRejectedByFilter):
			result.InvalidTraces++
			as.logger.Debug("Trace rejected", zap.String("trace_id", traceId), zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("failed to build trace %s: %w", traceId, err)
		default:
			trees = append(trees, tree)
		}
	}

	measurements, err := as.aggregator.Aggregate(ctx, trees)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate traces: %w", err)
	}
	result.TraceCount = len(measurements.E2EDurations)
	result.FilteredOutTraces = measurements.FilteredOut
	result.E2EDurations = measurements.E2EDurations
	if result.E2EDurations == nil {
		result.E2EDurations = []float64{}
	}

	as.summarize(measurements, result)

	as.metrics.Traces(metrics.TraceOutcomeAnalyzed, result.TraceCount)
	as.metrics.Traces(metrics.TraceOutcomeFilteredOut, result.FilteredOutTraces)
	as.metrics.Traces(metrics.TraceOutcomeNoRoot, result.NoRootTraces)
	as.metrics.Traces(metrics.TraceOutcomeInvalid, result.InvalidTraces)
	as.metrics.ObserveAnalysis(time.Since(started))
	as.logger.Info(
		"Finished trace analysis",
		zap.String("run_id", result.RunID),
		zap.Int("trace_count", result.TraceCount),
		zap.Int("filtered_out_traces", result.FilteredOutTraces),
		zap.Int("no_root_traces", result.NoRootTraces),
		zap.Int("invalid_traces", result.InvalidTraces),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (as *AnalysisService) summarize(measurements *aggregatorModel.Measurements, result *model.AnalysisResult) {
	if fitted, ok := as.fitSeries("e2e", measurements.E2EDurations); ok {
		result.E2EStatistics = &fitted
	}
	for key, durations := range measurements.ServiceTotals {
		if fitted, ok := as.fitSeries("service_total", durations); ok {
			result.ServiceTotalStatistics[key] = fitted
		}
	}
	for key, segments := range measurements.Segments {
		fittedSegments := make(map[string]model.FittedStatistics, len(segments))
		for name, durations := range segments {
			if fitted, ok := as.fitSeries("segment", durations); ok {
				fittedSegments[name] = fitted
			}
		}
		result.GranularSegmentStatistics[key] = fittedSegments
	}
	for key, durations := range measurements.OperationDurations {
		if stats, ok := statisticsService.Summarize(durations); ok {
			result.OperationStatistics[key] = stats
		}
	}
	for key, overheads := range measurements.NetworkOverheads {
		if stats, ok := statisticsService.SummarizeLatency(overheads); ok {
			result.NetworkLatencyStatistics[key] = stats
		}
	}
}

// fitSeries only attempts a fit for a positive mean and cv.
func (as *AnalysisService) fitSeries(series string, durations []float64) (model.FittedStatistics, bool) {
	stats, ok := statisticsService.Summarize(durations)
	if !ok {
		return model.FittedStatistics{}, false
	}
	fitted := model.FittedStatistics{Statistics: stats}
	if stats.Mean <= 0 || stats.CoefficientOfVariation <= 0 {
		return fitted, true
	}
	distribution, err := as.fitter.Fit(stats.Mean, stats.CoefficientOfVariation)
	if err != nil {
		as.metrics.FitFailure(series)
		as.logger.Warn(
			"Failed to fit distribution",
			zap.String("series", series),
			zap.Float64("mean", stats.Mean),
			zap.Float64("cv", stats.CoefficientOfVariation),
			zap.Error(err),
		)
		fitted.FitError = err.Error()
		return fitted, true
	}
	described := distributionModel.Describe(distribution)
	ks := distributionService.KolmogorovSmirnovDistance(durations, distribution)
	described.KSDistance = &ks
	fitted.Distribution = &described
	return fitted, true
}
