package service

import (
	"context"
	spanModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/aggregator/model"
	segmentService "github.com/Avi18971911/phasefit/internal/pipeline/segment/service"
	treeModel "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"math"
	"runtime"
	"sort"
)

type Aggregator struct {
	extractor *segmentService.SegmentExtractor
	// e2eCeilingMillis of zero disables the end-to-end exclusion policy.
	e2eCeilingMillis float64
	workers          int
	logger           *zap.Logger
}

func NewAggregator(
	extractor *segmentService.SegmentExtractor,
	e2eCeilingMillis float64,
	workers int,
	logger *zap.Logger,
) *Aggregator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Aggregator{
		extractor:        extractor,
		e2eCeilingMillis: e2eCeilingMillis,
		workers:          workers,
		logger:           logger,
	}
}

// Aggregate shards the trees over the workers and merges the partial measurements in shard order,
// so the result does not depend on scheduling.
func (a *Aggregator) Aggregate(ctx context.Context, trees []treeModel.TraceTree) (*model.Measurements, error) {
	workers := min(a.workers, len(trees))
	if workers <= 1 {
		measurements := model.NewMeasurements()
		for _, tree := range trees {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a.AggregateTrace(tree, measurements)
		}
		return measurements, nil
	}

	partials := make([]*model.Measurements, workers)
	shardSize := (len(trees) + workers - 1) / workers
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		from := i * shardSize
		to := min(from+shardSize, len(trees))
		partials[i] = model.NewMeasurements()
		if from >= to {
			continue
		}
		shard, partial := trees[from:to], partials[i]
		g.Go(func() error {
			for _, tree := range shard {
				if err := gCtx.Err(); err != nil {
					return err
				}
				a.AggregateTrace(tree, partial)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := model.NewMeasurements()
	for _, partial := range partials {
		merged.Merge(partial)
	}
	a.logger.Debug(
		"Aggregated traces",
		zap.Int("traces", len(trees)),
		zap.Int("workers", workers),
		zap.Int("filtered_out", merged.FilteredOut),
	)
	return merged, nil
}

// AggregateTrace accumulates one qualifying trace into measurements.
func (a *Aggregator) AggregateTrace(tree treeModel.TraceTree, measurements *model.Measurements) {
	e2e := tree.Root.DurationMillis()
	if a.e2eCeilingMillis > 0 && e2e > a.e2eCeilingMillis {
		measurements.FilteredOut++
		return
	}
	measurements.E2EDurations = append(measurements.E2EDurations, e2e)

	for _, span := range sortedSpans(tree) {
		key := model.ServiceKey(span.ServiceName, span.OperationName)
		measurements.OperationDurations[key] = append(measurements.OperationDurations[key], span.DurationMillis())
		if span.Kind != spanModel.SpanKindServer {
			continue
		}

		total := 0.0
		for _, segment := range a.extractor.Extract(span, tree.ChildrenByParentID) {
			measurements.AddSegment(key, segment.Name, segment.DurationMillis)
			total += segment.DurationMillis
		}
		measurements.ServiceTotals[key] = append(measurements.ServiceTotals[key], total)

		parent, ok := tree.Parent(span)
		if !ok || parent.Kind != spanModel.SpanKindClient {
			continue
		}
		overhead := math.Max(0, parent.DurationMillis()-span.DurationMillis())
		link := model.LinkKey(parent.ServiceName, span.ServiceName)
		measurements.NetworkOverheads[link] = append(measurements.NetworkOverheads[link], overhead)
	}
}

func sortedSpans(tree treeModel.TraceTree) []spanModel.Span {
	spans := make([]spanModel.Span, 0, len(tree.SpansByID))
	for _, span := range tree.SpansByID {
		spans = append(spans, span)
	}
	sort.Slice(spans, func(i, j int) bool {
		if !spans[i].StartTime.Equal(spans[j].StartTime) {
			return spans[i].StartTime.Before(spans[j].StartTime)
		}
		return spans[i].SpanID < spans[j].SpanID
	})
	return spans
}
