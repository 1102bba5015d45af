package service

import (
	"context"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/otel_server/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const traceA = "0af7651916cd43dd8448eb211c80319c"
const traceB = "4bf92f3577b34da6a3ce929d0e0e4736"

func spanJSON(traceId, spanId, parentId, name string, kind int, start, end int64, attributes ...string) string {
	parent := ""
	if parentId != "" {
		parent = fmt.Sprintf(`"parentSpanId":"%s",`, parentId)
	}
	var attrs []string
	for i := 0; i+1 < len(attributes); i += 2 {
		attrs = append(attrs, fmt.Sprintf(`{"key":"%s","value":{"stringValue":"%s"}}`, attributes[i], attributes[i+1]))
	}
	return fmt.Sprintf(
		`{"traceId":"%s","spanId":"%s",%s"name":"%s","kind":%d,"startTimeUnixNano":"%d","endTimeUnixNano":"%d","attributes":[%s]}`,
		traceId, spanId, parent, name, kind, start, end, strings.Join(attrs, ","),
	)
}

func recordJSON(service string, spans ...string) string {
	resource := `{"attributes":[]}`
	if service != "" {
		resource = fmt.Sprintf(`{"attributes":[{"key":"service.name","value":{"stringValue":"%s"}}]}`, service)
	}
	return fmt.Sprintf(
		`{"resourceSpans":[{"resource":%s,"scopeSpans":[{"scope":{},"spans":[%s]}]}]}`,
		resource, strings.Join(spans, ","),
	)
}

func TestIngest(t *testing.T) {
	logger := zap.NewNop()

	t.Run("should group spans by trace and resolve the service name", func(t *testing.T) {
		records := [][]byte{
			[]byte(recordJSON("users-service",
				spanJSON(traceA, "b7ad6b7169203331", "", "POST /reserve", 2, 1_000_000, 51_000_000),
				spanJSON(traceA, "00f067aa0ba902b7", "b7ad6b7169203331", "GET", 3, 2_000_000, 20_000_000, "http.method", "GET"),
			)),
			[]byte(recordJSON("catalog-service",
				spanJSON(traceA, "53995c3f42cd8ad8", "00f067aa0ba902b7", "GET /items", 2, 3_000_000, 19_000_000),
			)),
			[]byte(recordJSON("users-service",
				spanJSON(traceB, "b7ad6b7169203332", "", "POST /reserve", 2, 5, 10),
			)),
		}
		snapshot, stats := Ingest(records, logger)
		require.Len(t, snapshot, 2)
		require.Len(t, snapshot[traceA], 3)
		assert.Equal(t, 4, snapshot.SpanCount())
		assert.Equal(t, []string{traceA, traceB}, snapshot.TraceIDs())

		root := snapshot[traceA]["b7ad6b7169203331"]
		assert.Equal(t, "users-service", root.ServiceName)
		assert.Equal(t, "POST /reserve", root.OperationName)
		assert.Equal(t, model.SpanKindServer, root.Kind)
		assert.True(t, root.IsRoot())
		assert.Equal(t, int64(50_000_000), root.DurationNanos())

		client := snapshot[traceA]["00f067aa0ba902b7"]
		assert.Equal(t, "b7ad6b7169203331", client.ParentSpanID)
		assert.Equal(t, model.SpanKindClient, client.Kind)
		assert.Equal(t, "GET", client.Attributes["http.method"])

		assert.Equal(t, "catalog-service", snapshot[traceA]["53995c3f42cd8ad8"].ServiceName)
		assert.Equal(t, 3, stats.RecordsRead)
		assert.Equal(t, 0, stats.RecordsSkipped)
		assert.Equal(t, 4, stats.SpansAccepted)
	})

	t.Run("should fall back to the unknown service", func(t *testing.T) {
		records := [][]byte{[]byte(recordJSON("", spanJSON(traceA, "b7ad6b7169203331", "", "op", 2, 1, 2)))}
		snapshot, _ := Ingest(records, logger)
		assert.Equal(t, model.UnknownService, snapshot[traceA]["b7ad6b7169203331"].ServiceName)
	})

	t.Run("should skip malformed records and keep going", func(t *testing.T) {
		records := [][]byte{
			[]byte(`{"resourceSpans": [`),
			[]byte("   "),
			[]byte(recordJSON("users-service", spanJSON(traceA, "zz", "", "op", 2, 1, 2))),
			[]byte(recordJSON("users-service", spanJSON(traceA, "b7ad6b7169203331", "", "op", 2, 1, 2))),
		}
		snapshot, stats := Ingest(records, logger)
		assert.Len(t, snapshot[traceA], 1)
		assert.Equal(t, 3, stats.RecordsRead)
		assert.Equal(t, 2, stats.RecordsSkipped)
	})

	t.Run("should keep the last write of a duplicated span", func(t *testing.T) {
		records := [][]byte{
			[]byte(recordJSON("users-service", spanJSON(traceA, "b7ad6b7169203331", "", "first", 2, 1, 2))),
			[]byte(recordJSON("users-service", spanJSON(traceA, "b7ad6b7169203331", "", "second", 2, 1, 3))),
		}
		snapshot, stats := Ingest(records, logger)
		require.Len(t, snapshot[traceA], 1)
		assert.Equal(t, "second", snapshot[traceA]["b7ad6b7169203331"].OperationName)
		assert.Equal(t, 2, stats.SpansAccepted)
	})

	t.Run("should reject spans that end before they start", func(t *testing.T) {
		records := [][]byte{[]byte(recordJSON("users-service", spanJSON(traceA, "b7ad6b7169203331", "", "op", 2, 10, 5)))}
		snapshot, stats := Ingest(records, logger)
		assert.Empty(t, snapshot)
		assert.Equal(t, 1, stats.SpansRejected)
	})
}

func TestSpanRepositoryImpl_Snapshot(t *testing.T) {
	t.Run("should not be affected by later writes", func(t *testing.T) {
		repository := NewSpanRepository(zap.NewNop())
		start := time.Unix(0, 0)
		repository.WriteToBuffer([]model.Span{{TraceID: "t1", SpanID: "s1", StartTime: start, EndTime: start}})
		snapshot := repository.Snapshot()
		repository.WriteToBuffer([]model.Span{{TraceID: "t1", SpanID: "s2", StartTime: start, EndTime: start}})
		assert.Len(t, snapshot["t1"], 1)
		assert.Len(t, repository.Snapshot()["t1"], 2)

		repository.Reset()
		assert.Empty(t, repository.Snapshot())
		assert.Equal(t, 0, repository.Stats().SpansAccepted)
	})

	t.Run("should accept concurrent writers", func(t *testing.T) {
		repository := NewSpanRepository(zap.NewNop())
		start := time.Unix(0, 0)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					repository.WriteToBuffer([]model.Span{{
						TraceID:   fmt.Sprintf("t%d", i),
						SpanID:    fmt.Sprintf("s%d", j),
						StartTime: start,
						EndTime:   start,
					}})
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 400, repository.Snapshot().SpanCount())
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("should stream every line of the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "traces.json")
		content := strings.Join([]string{
			recordJSON("users-service", spanJSON(traceA, "b7ad6b7169203331", "", "op", 2, 1, 2)),
			"not json",
			"",
			recordJSON("users-service", spanJSON(traceB, "b7ad6b7169203331", "", "op", 2, 1, 2)),
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		repository := NewSpanRepository(zap.NewNop())
		err := LoadFile(context.Background(), path, repository, zap.NewNop())
		require.NoError(t, err)
		assert.Len(t, repository.Snapshot(), 2)
		assert.Equal(t, 1, repository.Stats().RecordsSkipped)
	})

	t.Run("Returns error if the file does not exist", func(t *testing.T) {
		repository := NewSpanRepository(zap.NewNop())
		err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), repository, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("Returns error if the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		repository := NewSpanRepository(zap.NewNop())
		err := LoadRecords(ctx, strings.NewReader("{}\n{}"), repository, zap.NewNop())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
