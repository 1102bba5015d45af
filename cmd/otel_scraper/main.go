package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/config"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/client"
	"github.com/Avi18971911/phasefit/internal/db/write_buffer"
	"github.com/Avi18971911/phasefit/internal/logging"
	"github.com/Avi18971911/phasefit/internal/metrics"
	traceModel "github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	traceServer "github.com/Avi18971911/phasefit/internal/otel_server/trace/server"
	analysisModel "github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	analysisService "github.com/Avi18971911/phasefit/internal/pipeline/analysis/service"
	"github.com/Avi18971911/phasefit/internal/pipeline/data_pipeline/service"
	"github.com/Avi18971911/phasefit/internal/pipeline/event_bus"
	repositoryService "github.com/Avi18971911/phasefit/internal/pipeline/span_repository/service"
	treeModel "github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
	"github.com/Avi18971911/phasefit/internal/report"
	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("otel_scraper", pflag.ExitOnError)
	config.RegisterFlags(fs)
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("OTLP receiver failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateReceiver(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	repository := repositoryService.NewSpanRepository(logger)
	sinks := []write_buffer.DatabaseWriteBuffer[traceModel.Span]{repository}

	var spanBuffer *write_buffer.DatabaseWriteBufferImpl[traceModel.Span]
	if cfg.Elasticsearch.WriteEnabled {
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
		if err != nil {
			return fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		bs := bootstrapper.NewBootstrapper(es, cfg.Elasticsearch.SpanIndex, logger)
		if err := bs.BootstrapElasticsearch(ctx); err != nil {
			return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
		}
		spanBuffer = write_buffer.NewDatabaseWriteBufferImpl[traceModel.Span](
			client.NewPhasefitClientImpl(es, client.Async),
			cfg.Elasticsearch.SpanIndex,
			cfg.Elasticsearch.BufferSize,
			logger,
		)
		sinks = append(sinks, spanBuffer)
	}

	as, err := analysisService.NewAnalysisService(
		analysisService.AnalysisConfig{
			Entry:             treeModel.WorkflowEntry{ServiceName: cfg.Workflow.EntryService, OperationName: cfg.Workflow.EntryOperation},
			E2ECeilingMillis:  cfg.Workflow.E2ECeilingMillis,
			FilterStrategy:    cfg.Workflow.FilterStrategy,
			ExpectedSpanCount: cfg.Workflow.ExpectedSpanCount,
			SegmentThreshold:  cfg.Workflow.SegmentThreshold(),
			MaxErlangPhases:   cfg.Workflow.MaxErlangPhases,
			Workers:           cfg.Workflow.Workers,
		},
		pipelineMetrics,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis service: %w", err)
	}

	bus := event_bus.NewPhasefitEventBus[analysisModel.AnalysisResult](EventBus.New(), logger)
	dataPipeline := service.NewDataPipeline(
		repository,
		as,
		report.DirectoryWriter{Dir: cfg.Output.Dir},
		bus,
		cfg.OTLP.AnalysisInterval,
		logger,
	)
	pipelineCleanup, err := dataPipeline.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start data pipeline: %w", err)
	}
	defer pipelineCleanup()

	metricsServer := &http.Server{
		Addr:    cfg.OTLP.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", cfg.OTLP.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.OTLP.ListenAddr, err)
	}
	srv := grpc.NewServer()
	protoTrace.RegisterTraceServiceServer(srv, traceServer.NewTraceServiceServerImpl(logger, pipelineMetrics, sinks...))

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("Shutting down OTLP receiver")
		srv.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down metrics server", zap.Error(err))
		}
		if spanBuffer != nil {
			if err := spanBuffer.Flush(shutdownCtx); err != nil {
				logger.Error("Failed to flush span buffer", zap.Error(err))
			}
		}
	}()

	logger.Info("gRPC service started, listening for OpenTelemetry traces", zap.String("listen_addr", cfg.OTLP.ListenAddr))
	if err := srv.Serve(listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	<-shutdownDone
	return nil
}
