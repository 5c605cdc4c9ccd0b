package solver

import (
	"container/list"
	"sync"

	"screensage/internal/types"
)

// SolutionCache is a bounded LRU keyed on problem fingerprint. It is safe
// for concurrent use across pipeline turns.
type SolutionCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key      string
	solution *types.GeneratedSolution
}

// NewSolutionCache creates a cache holding up to capacity solutions.
func NewSolutionCache(capacity int) *SolutionCache {
	if capacity < 1 {
		capacity = 1
	}
	return &SolutionCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the cached solution for the fingerprint, marking it as
// recently used.
func (c *SolutionCache) Get(fingerprint string) (*types.GeneratedSolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).solution, true
}

// Put stores a solution, evicting the least recently used entry when
// over capacity.
func (c *SolutionCache) Put(fingerprint string, solution *types.GeneratedSolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[fingerprint]; ok {
		el.Value.(*cacheEntry).solution = solution
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: fingerprint, solution: solution})
	c.entries[fingerprint] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached solutions.
func (c *SolutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
