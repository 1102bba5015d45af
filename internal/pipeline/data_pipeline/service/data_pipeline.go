package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	"github.com/Avi18971911/phasefit/internal/pipeline/event_bus"
	repositoryModel "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/model"
	"go.uber.org/zap"
	"sync"
	"time"
)

const AnalysisOutputTopic = "analysis_output"

var ErrEmptySnapshot = errors.New("no spans received yet")

type SnapshotSource interface {
	Snapshot() repositoryModel.Snapshot
}

type Analyzer interface {
	Analyze(ctx context.Context, snapshot repositoryModel.Snapshot) (*model.AnalysisResult, error)
}

type ResultWriter interface {
	Write(result *model.AnalysisResult) error
}

// DataPipeline periodically analyzes what the receiver has collected and hands each result
// to the report writer over the event bus.
type DataPipeline struct {
	source   SnapshotSource
	analyzer Analyzer
	writer   ResultWriter
	bus      event_bus.PhasefitEventBus[model.AnalysisResult]
	interval time.Duration
	logger   *zap.Logger
}

func NewDataPipeline(
	source SnapshotSource,
	analyzer Analyzer,
	writer ResultWriter,
	bus event_bus.PhasefitEventBus[model.AnalysisResult],
	interval time.Duration,
	logger *zap.Logger,
) *DataPipeline {
	return &DataPipeline{
		source:   source,
		analyzer: analyzer,
		writer:   writer,
		bus:      bus,
		interval: interval,
		logger:   logger,
	}
}

// Start subscribes the report writer and analyzes on every tick until ctx is done or the
// returned cleanup is called. The cleanup runs one last analysis and waits for the writer.
func (dp *DataPipeline) Start(ctx context.Context) (func(), error) {
	err := dp.bus.Subscribe(
		AnalysisOutputTopic,
		func(result model.AnalysisResult) error {
			if err := dp.writer.Write(&result); err != nil {
				return fmt.Errorf("failed to write analysis %s: %w", result.RunID, err)
			}
			dp.logger.Info("Wrote analysis report", zap.String("run_id", result.RunID))
			return nil
		},
		true,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe report writer: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(dp.interval)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				dp.tick(loopCtx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		cancel()
		wg.Wait()
		dp.tick(context.Background())
		dp.bus.WaitAsync()
		if err := dp.bus.Unsubscribe(AnalysisOutputTopic); err != nil {
			dp.logger.Error("Failed to unsubscribe report writer", zap.Error(err))
		}
	}, nil
}

func (dp *DataPipeline) tick(ctx context.Context) {
	if _, err := dp.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrEmptySnapshot) {
			dp.logger.Debug("Skipping analysis", zap.Error(err))
			return
		}
		dp.logger.Error("Failed to run analysis", zap.Error(err))
	}
}

// RunOnce analyzes the current snapshot and publishes the result.
func (dp *DataPipeline) RunOnce(ctx context.Context) (*model.AnalysisResult, error) {
	snapshot := dp.source.Snapshot()
	if snapshot.SpanCount() == 0 {
		return nil, ErrEmptySnapshot
	}
	result, err := dp.analyzer.Analyze(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %d traces: %w", len(snapshot), err)
	}
	if err := dp.bus.Publish(AnalysisOutputTopic, *result); err != nil {
		return nil, fmt.Errorf("failed to publish analysis output: %w", err)
	}
	return result, nil
}
