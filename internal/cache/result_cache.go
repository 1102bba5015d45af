package cache

import (
	"errors"
	"fmt"
	"github.com/dgraph-io/ristretto"
	"time"
)

var (
	ErrKeyNotFound = errors.New("key not found within the cache")
	ErrSetFailed   = errors.New("failed to set value in cache")
)

// ResultCache keeps computed values for a limited time. Eviction is based on LRU and LFU policies.
type ResultCache[ValueType any] interface {
	Get(key string) (ValueType, error)
	Put(key string, value ValueType) error
}

type ResultCacheImpl[ValueType any] struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewRistrettoCache builds a cache that holds up to maxEntries values of unit cost.
func NewRistrettoCache(maxEntries int64) (*ristretto.Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return cache, nil
}

func NewResultCacheImpl[ValueType any](cache *ristretto.Cache, ttl time.Duration) *ResultCacheImpl[ValueType] {
	return &ResultCacheImpl[ValueType]{
		cache: cache,
		ttl:   ttl,
	}
}

func (rc *ResultCacheImpl[ValueType]) Get(key string) (ValueType, error) {
	var zero ValueType
	value, found := rc.cache.Get(key)
	if !found {
		return zero, ErrKeyNotFound
	}
	typedValue, ok := value.(ValueType)
	if !ok {
		return zero, fmt.Errorf("value not of expected type %T returned from cache when getting", value)
	}
	return typedValue, nil
}

// Put stores value and waits until it is visible to Get.
func (rc *ResultCacheImpl[ValueType]) Put(key string, value ValueType) error {
	if !rc.cache.SetWithTTL(key, value, 1, rc.ttl) {
		return ErrSetFailed
	}
	rc.cache.Wait()
	return nil
}
