package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/cache"
	"github.com/Avi18971911/phasefit/internal/config"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/client"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/span_store"
	"github.com/Avi18971911/phasefit/internal/logging"
	"github.com/Avi18971911/phasefit/internal/metrics"
	"github.com/Avi18971911/phasefit/internal/pipeline/analysis/model"
	"github.com/Avi18971911/phasefit/internal/query_server/router"
	"github.com/Avi18971911/phasefit/internal/query_server/service/analysis"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	cacheEntries    = 256
	shutdownTimeout = 10 * time.Second
)

func main() {
	fs := pflag.NewFlagSet("query_server", pflag.ExitOnError)
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
		logger.Error("Query server failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateQueryServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	bs := bootstrapper.NewBootstrapper(es, cfg.Elasticsearch.SpanIndex, logger)
	if err := bs.BootstrapElasticsearch(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
	}

	ristrettoCache, err := cache.NewRistrettoCache(cacheEntries)
	if err != nil {
		return err
	}
	defer ristrettoCache.Close()

	registry := prometheus.NewRegistry()
	store := span_store.NewSpanStore(client.NewPhasefitClientImpl(es, client.Async), cfg.Elasticsearch.SpanIndex, 0, logger)
	aqs := analysis.NewAnalysisQueryService(
		store,
		cache.NewResultCacheImpl[*model.AnalysisResult](ristrettoCache, cfg.QueryServer.CacheTTL),
		analysis.Defaults{
			SegmentThreshold: cfg.Workflow.SegmentThreshold(),
			MaxErlangPhases:  cfg.Workflow.MaxErlangPhases,
			Workers:          cfg.Workflow.Workers,
		},
		metrics.NewPipelineMetrics(registry),
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.QueryServer.ListenAddr,
		Handler: router.CreateRouter(aqs, registry, logger),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down query server", zap.Error(err))
		}
	}()

	logger.Info("Starting query server", zap.String("listen_addr", cfg.QueryServer.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
