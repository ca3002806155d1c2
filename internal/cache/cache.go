package cache

import (
	"sync"
	"time"
)

// Entry is one cached collection. A stale entry is still servable, the
// reader just schedules a background refetch for it; this avoids
// blanking the UI on every invalidation.
type Entry struct {
	Collection any
	Stale      bool
	FetchedAt  time.Time
}

// Snapshot is a saved (key, entry) pair used by the mutation coordinator
// to roll an optimistic patch back verbatim.
type Snapshot struct {
	Key   Key
	Entry Entry
}

// Cache maps normalized query keys to fetched collections. It is a
// process-wide singleton shared by the reader, the mutation coordinator
// and the session boundary; all access goes through the mutex.
//
// Collections stored here are treated as immutable: Patch transforms
// must build a new slice, never mutate the stored one in place. That is
// what makes rollback snapshots cheap and writes atomic from the
// caller's point of view.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Entry
	now     func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]Entry),
		now:     time.Now,
	}
}

// Get returns the entry for key, stale or not. The second result is
// false on a miss.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Set stores a freshly fetched collection, clearing any stale mark.
func (c *Cache) Set(key Key, collection any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Collection: collection, FetchedAt: c.now()}
}

// Patch applies a pure transform to the cached collection, keeping the
// entry's stale flag. A miss is a no-op: there is nothing to project an
// optimistic update onto.
func (c *Cache) Patch(key Key, fn func(collection any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	entry.Collection = fn(entry.Collection)
	c.entries[key] = entry
}

// Invalidate marks every entry of the given kinds stale. Invalidating
// twice is the same as invalidating once.
func (c *Cache) Invalidate(kinds ...Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		for _, kind := range kinds {
			if key.Kind == kind {
				entry.Stale = true
				c.entries[key] = entry
				break
			}
		}
	}
}

// InvalidateKeys marks the specific entries stale, ignoring misses.
func (c *Cache) InvalidateKeys(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if entry, ok := c.entries[key]; ok {
			entry.Stale = true
			c.entries[key] = entry
		}
	}
}

// Keys returns every cached key of the given kind.
func (c *Cache) Keys(kind Kind) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Key
	for key := range c.entries {
		if key.Kind == kind {
			out = append(out, key)
		}
	}
	return out
}

// SnapshotKind saves every entry of the given kind so a failed
// optimistic mutation can be rolled back.
func (c *Cache) SnapshotKind(kind Kind) []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Snapshot
	for key, entry := range c.entries {
		if key.Kind == kind {
			out = append(out, Snapshot{Key: key, Entry: entry})
		}
	}
	return out
}

// Restore puts snapshotted entries back exactly as they were, stale
// flags included.
func (c *Cache) Restore(snapshots []Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, snap := range snapshots {
		c.entries[snap.Key] = snap.Entry
	}
}

// Reset discards the whole cache. Used on login/logout/credential
// change: cached collections may belong to a different principal, so
// marking them stale is not enough.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]Entry)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
