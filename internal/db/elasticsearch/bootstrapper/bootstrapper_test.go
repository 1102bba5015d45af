package bootstrapper

import (
	"context"
	"encoding/json"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeCluster struct {
	mu          sync.Mutex
	indexExists bool
	available   bool
	created     map[string]interface{}
	createCalls int
}

func (fc *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case !fc.available:
		w.WriteHeader(http.StatusInternalServerError)
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"8.15.0"},"tagline":"You Know, for Search"}`)
	case r.Method == http.MethodHead && r.URL.Path == "/span_index":
		if !fc.indexExists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/span_index":
		fc.createCalls++
		_ = json.NewDecoder(r.Body).Decode(&fc.created)
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newBootstrapper(t *testing.T, cluster *fakeCluster) *Bootstrapper {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	bs := NewBootstrapper(es, "", zap.NewNop())
	bs.retries = 2
	bs.delay = time.Millisecond
	return bs
}

func TestBootstrapper_BootstrapElasticsearch(t *testing.T) {
	t.Run("should create the span index with its mapping", func(t *testing.T) {
		cluster := &fakeCluster{available: true}
		require.NoError(t, newBootstrapper(t, cluster).BootstrapElasticsearch(context.Background()))

		assert.Equal(t, 1, cluster.createCalls)
		properties := cluster.created["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
		assert.Equal(t, "date_nanos", properties["start_time"].(map[string]interface{})["type"])
		assert.Equal(t, "keyword", properties["trace_id"].(map[string]interface{})["type"])
		assert.Equal(t, "flattened", properties["attributes"].(map[string]interface{})["type"])
	})

	t.Run("should leave an existing index alone", func(t *testing.T) {
		cluster := &fakeCluster{available: true, indexExists: true}
		require.NoError(t, newBootstrapper(t, cluster).BootstrapElasticsearch(context.Background()))
		assert.Equal(t, 0, cluster.createCalls)
	})

	t.Run("Returns error if elasticsearch never becomes available", func(t *testing.T) {
		cluster := &fakeCluster{}
		err := newBootstrapper(t, cluster).BootstrapElasticsearch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
	})

	t.Run("Returns error if the context is cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		bs := newBootstrapper(t, &fakeCluster{})
		bs.delay = time.Hour
		assert.ErrorIs(t, bs.BootstrapElasticsearch(ctx), context.Canceled)
	})
}
