package bootstrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"time"
)

const (
	retries  = 30
	waitTime = 5 * time.Second
)

type Bootstrapper struct {
	esClient      *elasticsearch.Client
	spanIndexName string
	retries       int
	delay         time.Duration
	logger        *zap.Logger
}

func NewBootstrapper(esClient *elasticsearch.Client, spanIndexName string, logger *zap.Logger) *Bootstrapper {
	if spanIndexName == "" {
		spanIndexName = SpanIndexName
	}
	return &Bootstrapper{
		esClient:      esClient,
		spanIndexName: spanIndexName,
		retries:       retries,
		delay:         waitTime,
		logger:        logger,
	}
}

// BootstrapElasticsearch waits for the cluster and creates the span index when it is missing.
func (bs *Bootstrapper) BootstrapElasticsearch(ctx context.Context) error {
	if err := bs.waitForElasticsearch(ctx); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	if err := bs.createIndex(ctx, bs.spanIndexName, spanIndex()); err != nil {
		return fmt.Errorf("error creating span index: %w", err)
	}
	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(ctx context.Context) error {
	for i := 0; i < bs.retries; i++ {
		res, err := bs.esClient.Info(bs.esClient.Info.WithContext(ctx))
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				bs.logger.Info("Elasticsearch is available")
				return nil
			}
		}
		bs.logger.Warn(
			"Elasticsearch not available, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", bs.retries),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bs.delay):
		}
	}
	return fmt.Errorf("Elasticsearch is not available after %d attempts", bs.retries)
}

func (bs *Bootstrapper) createIndex(ctx context.Context, indexName string, index map[string]interface{}) error {
	exists, err := bs.esClient.Indices.Exists(
		[]string{indexName},
		bs.esClient.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error checking index %s during bootstrap: %w", indexName, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		bs.logger.Info("Index already exists", zap.String("index_name", indexName))
		return nil
	}

	body, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}
	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(strings.NewReader(string(body))),
		bs.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response for index %s: %s", indexName, res.String())
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}
