package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/tidelake/tidelake/pkg/types"
)

// planCache holds optimized plans keyed by query fingerprint. Entries older
// than the TTL are recomputed transparently on the next lookup. The cache
// is unbounded; eviction is the caller's concern.
type planCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uint64]cacheEntry
}

type cacheEntry struct {
	plan     *types.Plan
	storedAt time.Time
}

func newPlanCache(ttl time.Duration) *planCache {
	return &planCache{
		ttl:     ttl,
		entries: make(map[uint64]cacheEntry),
	}
}

// get returns a fresh cached plan, or nil when absent or stale.
func (c *planCache) get(key uint64) *types.Plan {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		return nil
	}
	return entry.plan
}

func (c *planCache) put(key uint64, plan *types.Plan) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{plan: plan, storedAt: time.Now()}
	c.mu.Unlock()
}

func (c *planCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fingerprint computes the cache key for a query: a murmur3 hash over the
// SQL text, query type, and parameters in sorted key order.
func Fingerprint(q *types.Query) uint64 {
	h := murmur3.New64()
	h.Write([]byte(q.SQL))
	h.Write([]byte{0})
	h.Write([]byte(q.Type))

	if len(q.Parameters) > 0 {
		keys := make([]string, 0, len(q.Parameters))
		for k := range q.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte{0})
			h.Write([]byte(k))
			h.Write([]byte{'='})
			v, err := json.Marshal(q.Parameters[k])
			if err != nil {
				v = []byte(fmt.Sprintf("%v", q.Parameters[k]))
			}
			h.Write(v)
		}
	}
	return h.Sum64()
}
