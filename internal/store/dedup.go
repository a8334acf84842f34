// Package store provides deduplication storage using Bloom filters and LRU cache.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupStore is a bounded seen-set over normalized track keys. A Bloom
// filter answers the common negative case cheaply; the map is the source
// of truth and the LRU decides who gets evicted at capacity.
type DedupStore struct {
	keys                   map[string]struct{}
	bloom                  *bloom.BloomFilter
	lru                    *lru.Cache[string, struct{}]
	mutex                  sync.RWMutex
	maxKeys                int
	bloomFalsePositiveRate float64
}

// NewDedupStore creates a new deduplication store with the specified
// capacity and false positive rate.
func NewDedupStore(maxKeys int, bloomFalsePositiveRate float64) *DedupStore {
	if maxKeys < 1 {
		panic("maxKeys must be positive")
	}

	ds := &DedupStore{
		keys:                   make(map[string]struct{}),
		bloom:                  bloom.NewWithEstimates(uint(maxKeys), bloomFalsePositiveRate),
		maxKeys:                maxKeys,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}

	// The eviction callback keeps the map in lockstep with the LRU; it
	// runs inside Add/Purge while ds.mutex is already held.
	lruCache, _ := lru.NewWithEvict[string, struct{}](maxKeys, func(key string, _ struct{}) {
		delete(ds.keys, key)
	})
	ds.lru = lruCache

	return ds
}

// Has checks if a key exists in the deduplication store.
func (ds *DedupStore) Has(key string) bool {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(key) {
		return false
	}

	_, exists := ds.keys[key]
	return exists
}

// Add adds a key to the deduplication store.
func (ds *DedupStore) Add(key string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if _, exists := ds.keys[key]; exists {
		return
	}

	ds.keys[key] = struct{}{}
	ds.bloom.AddString(key)
	ds.lru.Add(key, struct{}{})
}

// Size returns the number of keys currently stored.
func (ds *DedupStore) Size() int {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return len(ds.keys)
}

// Clear removes all keys from the store.
func (ds *DedupStore) Clear() {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.lru.Purge()
	ds.keys = make(map[string]struct{})
	ds.bloom = bloom.NewWithEstimates(uint(ds.maxKeys), ds.bloomFalsePositiveRate)
}
