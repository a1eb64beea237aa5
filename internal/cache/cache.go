// Package cache memoizes harvest results so identical queries inside the
// TTL window do not hit the upstream again.
package cache

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
)

// Key identifies a query by content. Region order does not matter; the
// sorted effective region list feeds the digest, so {A,B} and {B,A} share
// an entry, as does an empty selection and the explicit all-regions list.
type Key [sha256.Size]byte

// KeyFor derives the cache key for a query.
func KeyFor(q harvest.Query) Key {
	h := sha256.New()
	h.Write([]byte(q.Keyword))
	h.Write([]byte{0})
	for _, r := range q.SortedRegions() {
		h.Write([]byte(r))
		h.Write([]byte{0})
	}
	var key Key
	h.Sum(key[:0])
	return key
}

type entry struct {
	table    harvest.RawTable
	storedAt time.Time
}

// Cache is a mutex-guarded TTL cache of harvested tables. A non-positive
// TTL disables it entirely.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   harvest.Clock
	entries map[Key]entry
}

// New constructs a Cache with the given TTL.
func New(ttl time.Duration, clock harvest.Clock) *Cache {
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[Key]entry),
	}
}

// Get returns the cached table for the query when a live entry exists.
// Expired entries are removed on lookup.
func (c *Cache) Get(q harvest.Query) (harvest.RawTable, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	key := KeyFor(q)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	out := make(harvest.RawTable, len(e.table))
	copy(out, e.table)
	return out, true
}

// Put stores the table for the query, replacing any previous entry.
func (c *Cache) Put(q harvest.Query, table harvest.RawTable) {
	if c.ttl <= 0 {
		return
	}
	stored := make(harvest.RawTable, len(table))
	copy(stored, table)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[KeyFor(q)] = entry{table: stored, storedAt: c.clock.Now()}
}
