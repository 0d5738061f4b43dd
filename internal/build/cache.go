package build

import (
	"sync"

	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
)

// Entry is what the cache remembers about a node's last successful render.
type Entry struct {
	// Hash is the source content hash the render was based on.
	Hash string
	// Artifacts lists the output-relative paths the render produced.
	Artifacts []string
	// Consumed is the exact producer set the renderer touched; it becomes the
	// node's outgoing edges for the next invalidation cycle.
	Consumed map[content.ID]graph.EdgeKind
}

// Cache is the process-lifetime mapping from node identity to its last
// successful render. It is created empty at process start and never persisted:
// each fresh build starts cold, trading recompute cost for immunity to
// stale-cache bugs.
//
// Workers update disjoint entries concurrently (the at-most-one-render
// invariant guarantees no two workers touch the same node), so a single
// RWMutex over the map suffices.
type Cache struct {
	mu      sync.RWMutex
	entries map[content.ID]Entry
}

// NewCache returns an empty build cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[content.ID]Entry)}
}

// Get returns the cached entry for id.
func (c *Cache) Get(id content.ID) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Update stores the entry for id after a successful render.
func (c *Cache) Update(id content.ID, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = e
}

// Invalidate drops the entry for id (file deleted or render failed).
func (c *Cache) Invalidate(id content.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ConsumedSets snapshots every cached consumed-set. The reconciliation step
// applies these to the graph single-threaded after a build settles.
func (c *Cache) ConsumedSets() map[content.ID]map[content.ID]graph.EdgeKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[content.ID]map[content.ID]graph.EdgeKind, len(c.entries))
	for id, e := range c.entries {
		if e.Consumed != nil {
			out[id] = e.Consumed
		}
	}
	return out
}
