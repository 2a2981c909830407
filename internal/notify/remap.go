package notify

import (
	"container/list"
	"sync"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// RemapCache remembers old→new RecipientId redirects created by merges, so
// references cached before a merge completed still resolve. Entries live for
// the process lifetime by default; an optional cap bounds memory with LRU
// eviction, at the cost of evicted late lookups failing (callers then
// re-resolve from the original identifier).
type RemapCache struct {
	mu    sync.RWMutex
	m     map[domain.RecipientID]*list.Element
	order *list.List // front = most recently used
	cap   int        // 0 = unbounded
}

type remapEntry struct {
	old, new domain.RecipientID
}

// NewRemapCache constructs a cache. cap <= 0 means unbounded.
func NewRemapCache(cap int) *RemapCache {
	if cap < 0 {
		cap = 0
	}
	return &RemapCache{
		m:     make(map[domain.RecipientID]*list.Element),
		order: list.New(),
		cap:   cap,
	}
}

// Add records a permanent redirect from old to new. Adding is only done by
// successful merges, after their transaction commits.
func (c *RemapCache) Add(old, new domain.RecipientID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.m[old]; ok {
		el.Value = remapEntry{old: old, new: new}
		c.order.MoveToFront(el)
		return
	}
	c.m[old] = c.order.PushFront(remapEntry{old: old, new: new})
	if c.cap > 0 && c.order.Len() > c.cap {
		tail := c.order.Back()
		if tail != nil {
			c.order.Remove(tail)
			delete(c.m, tail.Value.(remapEntry).old)
		}
	}
}

// Resolve follows redirects from id to the most recent surviving id.
// ok is false when no mapping exists (the id may still be live in the store).
func (c *RemapCache) Resolve(id domain.RecipientID) (mapped domain.RecipientID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, found := id, false
	// Chains stay short (a merge target can itself be merged later), but the
	// visited guard protects against a malformed cycle.
	visited := map[domain.RecipientID]struct{}{}
	for {
		el, ok := c.m[cur]
		if !ok {
			break
		}
		if _, seen := visited[cur]; seen {
			break
		}
		visited[cur] = struct{}{}
		c.order.MoveToFront(el)
		cur = el.Value.(remapEntry).new
		found = true
	}
	if !found {
		return 0, false
	}
	return cur, true
}

// Len reports the number of live redirects.
func (c *RemapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
