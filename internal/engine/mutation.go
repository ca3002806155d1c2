package engine

// mutation.go runs writes with optimistic cache projection and rollback.
// Per mutation the lifecycle is Idle -> InFlight -> Committed or
// RolledBack, with the pre-mutation snapshots held explicitly so
// rollback is a pure function of stored state.

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"librarian/internal/cache"
)

// Op names a mutation kind for identity and invalidation purposes.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpProlong Op = "prolong"
	OpCancel  Op = "cancel"
	OpConvert Op = "convert"
	OpExpire  Op = "expire"
)

// ErrBusy rejects a second concurrent mutation on the same identity.
// It is raised client-side before any network call; callers surface it
// as a disabled control, not an error banner.
var ErrBusy = errors.New("another mutation for this entity is still in flight")

// IsBusy reports whether err is the in-flight rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// identity is the at-most-one-in-flight unit: one entity, one operation.
type identity struct {
	kind     cache.Kind
	entityID string
	op       Op
}

// Mutation describes one write against one entity collection.
type Mutation struct {
	Kind     cache.Kind
	EntityID string // empty for collection-level operations
	Op       Op
	// Patch is the optimistic projection applied to every cached page
	// of Kind before the call settles. Nil for creates: there is no
	// prior row to project onto.
	Patch func(collection any) any
	// Call performs the network write.
	Call func(ctx context.Context) error
}

// Coordinator executes mutations one at a time per identity.
type Coordinator struct {
	mu       sync.Mutex
	cache    *cache.Cache
	log      *slog.Logger
	inflight map[identity]struct{}
}

// NewCoordinator returns a coordinator over c.
func NewCoordinator(c *cache.Cache, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cache:    c,
		log:      log,
		inflight: make(map[identity]struct{}),
	}
}

// Busy reports whether a mutation with the same identity is in flight,
// so a UI can disable the control before even trying.
func (c *Coordinator) Busy(kind cache.Kind, entityID string, op Op) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inflight[identity{kind, entityID, op}]
	return busy
}

// Run executes m. Sequence: reject if busy, apply the optimistic patch
// (snapshotting first), perform the call, then either commit (drop
// snapshots, invalidate the downstream kinds) or roll back (restore
// snapshots verbatim, invalidate only m.Kind so the collection
// reconciles against server truth).
func (c *Coordinator) Run(ctx context.Context, m Mutation) error {
	id := identity{m.Kind, m.EntityID, m.Op}

	c.mu.Lock()
	if _, busy := c.inflight[id]; busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inflight[id] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
	}()

	var snapshots []cache.Snapshot
	if m.Patch != nil {
		snapshots = c.cache.SnapshotKind(m.Kind)
		for _, snap := range snapshots {
			c.cache.Patch(snap.Key, m.Patch)
		}
		c.log.Debug("optimistic patch applied",
			"kind", string(m.Kind), "entity", m.EntityID, "op", string(m.Op))
	}

	if err := m.Call(ctx); err != nil {
		// No side effect was confirmed, so downstream kinds keep their
		// entries; only the entity's own collection is reconciled.
		if m.Patch != nil {
			c.cache.Restore(snapshots)
			keys := make([]cache.Key, len(snapshots))
			for i, snap := range snapshots {
				keys[i] = snap.Key
			}
			c.cache.InvalidateKeys(keys...)
			c.log.Debug("optimistic patch rolled back",
				"kind", string(m.Kind), "entity", m.EntityID, "op", string(m.Op))
		} else {
			c.cache.Invalidate(m.Kind)
		}
		return err
	}

	c.cache.Invalidate(Downstream(m.Kind)...)
	return nil
}
