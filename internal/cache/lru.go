// Package cache is a bounded hot-object cache for single-record reads. It is
// never authoritative: the store invalidates an identity before and after
// every write or delete, and observers always read from disk.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/folio/internal/record"
)

// LRU caches encoded record bytes keyed by identity. A nil *LRU is a valid,
// always-empty cache.
type LRU struct {
	c *lru.Cache[record.Identity, []byte]

	// epoch advances on every invalidation. Fill only stores bytes read
	// while it stood still.
	mu    sync.Mutex
	epoch uint64
}

// New creates a cache holding at most size records. size <= 0 disables
// caching and returns nil.
func New(size int) (*LRU, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[record.Identity, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

// Get returns the cached bytes for id.
func (l *LRU) Get(id record.Identity) ([]byte, bool) {
	if l == nil {
		return nil, false
	}
	return l.c.Get(id)
}

// Add stores data for id.
func (l *LRU) Add(id record.Identity, data []byte) {
	if l == nil {
		return
	}
	l.c.Add(id, data)
}

// Epoch returns the current invalidation epoch.
func (l *LRU) Epoch() uint64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Fill stores data read from disk for id unless an invalidation happened
// since epoch was taken. It reports whether data was stored.
func (l *LRU) Fill(id record.Identity, data []byte, epoch uint64) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != epoch {
		return false
	}
	l.c.Add(id, data)
	return true
}

// Invalidate drops id.
func (l *LRU) Invalidate(id record.Identity) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.c.Remove(id)
}

// InvalidateType drops every cached record of tag.
func (l *LRU) InvalidateType(tag string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	for _, id := range l.c.Keys() {
		if id.Type == tag {
			l.c.Remove(id)
		}
	}
}

// Purge empties the cache.
func (l *LRU) Purge() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.c.Purge()
}

// Len returns the number of cached records.
func (l *LRU) Len() int {
	if l == nil {
		return 0
	}
	return l.c.Len()
}
