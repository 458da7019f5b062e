package transceiver

import (
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheCapacity = 1000

// DeduplicationCache remembers the IDs of recently seen signals so that a
// signal relayed by several peers is handled once.
type DeduplicationCache struct {
	capacity   int
	ids        *lru.Cache
	duplicates atomic.Int64
}

// NewDeduplicationCache creates a cache holding up to capacity IDs. The least
// recently seen ID is forgotten first.
func NewDeduplicationCache(capacity int) *DeduplicationCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	ids, err := lru.New(capacity)
	if err != nil {
		// only returned for a non-positive size
		log.Panicf("[DEDUP] %v", err)
	}
	return &DeduplicationCache{capacity: capacity, ids: ids}
}

// Seen records id and reports whether it had already been recorded.
func (dc *DeduplicationCache) Seen(id uuid.UUID) bool {
	found, _ := dc.ids.ContainsOrAdd(id, struct{}{})
	if found {
		dc.ids.Get(id) // refresh recency
		dc.duplicates.Add(1)
	}
	return found
}

// Contains reports whether id is cached without touching its recency.
func (dc *DeduplicationCache) Contains(id uuid.UUID) bool {
	return dc.ids.Contains(id)
}

// Size returns the number of cached IDs.
func (dc *DeduplicationCache) Size() int {
	return dc.ids.Len()
}

// Clear forgets every ID.
func (dc *DeduplicationCache) Clear() {
	dc.ids.Purge()
}

// GetStats returns cache statistics.
func (dc *DeduplicationCache) GetStats() map[string]interface{} {
	size := dc.ids.Len()
	return map[string]interface{}{
		"capacity":    dc.capacity,
		"size":        size,
		"duplicates":  dc.duplicates.Load(),
		"utilization": float64(size) / float64(dc.capacity),
	}
}
