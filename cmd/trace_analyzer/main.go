package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/config"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/client"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/span_store"
	"github.com/Avi18971911/phasefit/internal/logging"
	"github.com/Avi18971911/phasefit/internal/metrics"
	analysisService "github.com/Avi18971911/phasefit/internal/pipeline/analysis/service"
	repositoryService "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/service"
	treeModel "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	treeService "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/service"
	"github.com/Avi18971911/phasefit/internal/report"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	fs := pflag.NewFlagSet("trace_analyzer", pflag.ExitOnError)
	config.RegisterFlags(fs)
	dumpTraces := fs.Bool("dump-traces", false, "print every workflow trace tree before analysis")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.App.LogLevel, cfg.App.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dumpTraces, logger); err != nil {
		logger.Error("Trace analysis failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dumpTraces bool, logger *zap.Logger) error {
	if err := cfg.ValidateInput(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repository := repositoryService.NewSpanRepository(logger)
	if err := loadSpans(ctx, cfg, repository, logger); err != nil {
		return err
	}
	stats := repository.Stats()
	logger.Info(
		"Loaded spans",
		zap.Int("records_read", stats.RecordsRead),
		zap.Int("records_skipped", stats.RecordsSkipped),
		zap.Int("spans_accepted", stats.SpansAccepted),
		zap.Int("spans_rejected", stats.SpansRejected),
	)

	entry := treeModel.WorkflowEntry{ServiceName: cfg.Workflow.EntryService, OperationName: cfg.Workflow.EntryOperation}
	snapshot := repository.Snapshot()
	if dumpTraces {
		builder := treeService.NewTraceTreeBuilder(entry, nil)
		for _, traceId := range snapshot.TraceIDs() {
			tree, err := builder.Build(traceId, snapshot[traceId])
			if err != nil {
				continue
			}
			fmt.Println(treeService.Render(tree))
		}
	}

	as, err := analysisService.NewAnalysisService(
		analysisService.AnalysisConfig{
			Entry:             entry,
			E2ECeilingMillis:  cfg.Workflow.E2ECeilingMillis,
			FilterStrategy:    cfg.Workflow.FilterStrategy,
			ExpectedSpanCount: cfg.Workflow.ExpectedSpanCount,
			SegmentThreshold:  cfg.Workflow.SegmentThreshold(),
			MaxErlangPhases:   cfg.Workflow.MaxErlangPhases,
			Workers:           cfg.Workflow.Workers,
		},
		metrics.NewPipelineMetrics(prometheus.NewRegistry()),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis service: %w", err)
	}
	result, err := as.Analyze(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("failed to analyze traces: %w", err)
	}
	if result.TraceCount == 0 {
		logger.Warn("No trace matched the workflow entry", zap.String("entry", entry.ServiceName+" "+entry.OperationName))
	}

	if err := report.WriteResult(cfg.Output.Dir, result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("Wrote analysis report", zap.String("output_dir", cfg.Output.Dir), zap.String("run_id", result.RunID))
	return nil
}

func loadSpans(
	ctx context.Context,
	cfg *config.Config,
	repository *repositoryService.SpanRepositoryImpl,
	logger *zap.Logger,
) error {
	switch cfg.Input.Source {
	case config.FileSource:
		if err := repositoryService.LoadFile(ctx, cfg.Input.Path, repository, logger); err != nil {
			return fmt.Errorf("failed to load %s: %w", cfg.Input.Path, err)
		}
		return nil
	case config.ElasticsearchSource:
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
		if err != nil {
			return fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		bs := bootstrapper.NewBootstrapper(es, cfg.Elasticsearch.SpanIndex, logger)
		if err := bs.BootstrapElasticsearch(ctx); err != nil {
			return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
		}
		store := span_store.NewSpanStore(client.NewPhasefitClientImpl(es, client.Async), cfg.Elasticsearch.SpanIndex, 0, logger)
		var window span_store.TimeWindow
		if cfg.Elasticsearch.LoadWindow > 0 {
			window.End = time.Now().UTC()
			window.Start = window.End.Add(-cfg.Elasticsearch.LoadWindow)
		}
		spans, err := store.LoadSpans(ctx, window)
		if err != nil {
			return fmt.Errorf("failed to load spans from elasticsearch: %w", err)
		}
		repository.WriteToBuffer(spans)
		return nil
	default:
		return errors.New("unsupported span source " + cfg.Input.Source)
	}
}
