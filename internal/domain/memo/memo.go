// Package memo caches rendered figures by their normalised inputs.
package memo

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/epidash/internal/domain/figure"
	"github.com/okian/epidash/pkg/metrics"
)

const defaultMaxSize = 1024

// Cache stores figures keyed by an inputs key.
type Cache interface {
	// Get returns the cached figures for key and records a hit or a miss.
	Get(ctx context.Context, key string) (figure.Figures, bool)

	// Put stores figures for key, evicting the oldest entry when full.
	// Storing an existing key refreshes its value without changing its age.
	Put(ctx context.Context, key string, figs figure.Figures)

	// Delete drops key if present.
	Delete(ctx context.Context, key string)

	Size() int64
}

// node is an entry in the insertion-ordered list.
type node struct {
	key        string
	figs       figure.Figures
	prev, next *node
}

func (n *node) reset() {
	n.key = ""
	n.figs = figure.Figures{}
	n.prev, n.next = nil, nil
}

// inMemoryCache keeps entries in a doubly linked list ordered by insertion.
// Bounded mode (maxSize > 0) evicts from the tail; unbounded mode never
// evicts.
type inMemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*node
	head     *node // newest
	tail     *node // oldest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryCache creates a cache with configuration options.
func NewInMemoryCache(opts ...Option) Cache {
	c := &inMemoryCache{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = make(map[string]*node)
	c.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	metrics.UpdateMemoSize(0)
	return c
}

func (c *inMemoryCache) Get(ctx context.Context, key string) (figure.Figures, bool) {
	c.mu.RLock()
	n, ok := c.entries[key]
	var figs figure.Figures
	if ok {
		figs = n.figs
	}
	c.mu.RUnlock()

	if ok {
		metrics.RecordMemoHit()
	} else {
		metrics.RecordMemoMiss()
	}
	return figs, ok
}

func (c *inMemoryCache) Put(ctx context.Context, key string, figs figure.Figures) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		n.figs = figs
		return
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node)
	n.key = key
	n.figs = figs
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.entries[key] = n
	metrics.UpdateMemoSize(c.size.Add(1))
}

func (c *inMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return
	}
	c.unlink(n)
	metrics.UpdateMemoSize(c.size.Load())
}

// evictOldest drops the tail. Must be called with c.mu held.
func (c *inMemoryCache) evictOldest() {
	if c.tail != nil {
		c.unlink(c.tail)
	}
}

// unlink removes n from the list and the map. Must be called with c.mu held.
func (c *inMemoryCache) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	delete(c.entries, n.key)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

// Size returns the number of cached entries.
func (c *inMemoryCache) Size() int64 {
	return c.size.Load()
}
