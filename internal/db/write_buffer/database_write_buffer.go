package write_buffer

import (
	"context"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/db/elasticsearch/client"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	DefaultWriteQueueSize = 1000
	flushTimeOut          = 10 * time.Second
)

type DatabaseWriteBuffer[ValueType any] interface {
	WriteToBuffer(value []ValueType)
}

// DatabaseWriteBufferImpl queues values and bulk indexes them in the background once the
// queue grows past its size. After Flush no background flushes start; later writes stay
// queued for the next Flush.
type DatabaseWriteBufferImpl[ValueType client.IndexedDocument] struct {
	writeQueue  []ValueType
	queueSize   int
	ac          client.PhasefitClient
	esIndexName string
	logger      *zap.Logger
	mu          sync.Mutex
	closed      bool
	flushes     sync.WaitGroup
}

func NewDatabaseWriteBufferImpl[ValueType client.IndexedDocument](
	ac client.PhasefitClient,
	esIndexName string,
	queueSize int,
	logger *zap.Logger,
) *DatabaseWriteBufferImpl[ValueType] {
	if queueSize <= 0 {
		queueSize = DefaultWriteQueueSize
	}
	return &DatabaseWriteBufferImpl[ValueType]{
		writeQueue:  []ValueType{},
		queueSize:   queueSize,
		ac:          ac,
		esIndexName: esIndexName,
		logger:      logger,
	}
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) WriteToBuffer(value []ValueType) {
	wbc.mu.Lock()
	wbc.writeQueue = append(wbc.writeQueue, value...)
	if wbc.closed || len(wbc.writeQueue) <= wbc.queueSize {
		wbc.mu.Unlock()
		return
	}
	batch := wbc.takeQueue()
	wbc.flushes.Add(1)
	wbc.mu.Unlock()

	go func() {
		defer wbc.flushes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeOut)
		defer cancel()
		if err := wbc.flushToElasticsearch(ctx, batch); err != nil {
			wbc.logger.Error("Failed to flush to Elasticsearch", zap.Int("batch_size", len(batch)), zap.Error(err))
		}
	}()
}

// Flush stops background flushes, waits for the running ones and writes the remaining queue.
func (wbc *DatabaseWriteBufferImpl[ValueType]) Flush(ctx context.Context) error {
	wbc.mu.Lock()
	wbc.closed = true
	batch := wbc.takeQueue()
	wbc.mu.Unlock()

	// no Add can follow once closed is set under mu
	wbc.flushes.Wait()
	return wbc.flushToElasticsearch(ctx, batch)
}

// takeQueue must be called with mu held.
func (wbc *DatabaseWriteBufferImpl[ValueType]) takeQueue() []ValueType {
	batch := wbc.writeQueue
	wbc.writeQueue = make([]ValueType, 0, wbc.queueSize)
	return batch
}

func (wbc *DatabaseWriteBufferImpl[ValueType]) flushToElasticsearch(ctx context.Context, batch []ValueType) error {
	if len(batch) == 0 {
		return nil
	}
	metaMap, dataMap, err := client.ToBulkActions(batch)
	if err != nil {
		return fmt.Errorf("error converting write queue to meta and data map: %w", err)
	}
	if err := wbc.ac.BulkIndex(ctx, metaMap, dataMap, wbc.esIndexName); err != nil {
		return fmt.Errorf("error bulk indexing to Elasticsearch: %w", err)
	}
	wbc.logger.Debug("Flushed write buffer", zap.String("index", wbc.esIndexName), zap.Int("batch_size", len(batch)))
	return nil
}
