package engine

// reader.go owns the read side of the engine: which request is current
// for each cache key, cancelling superseded ones, and making sure a
// slow stale response can never overwrite a newer one.

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"librarian/internal/api"
	"librarian/internal/cache"
)

// ErrSuperseded is returned to a Load caller whose response was pruned
// because a newer read for the same key was issued while it was in
// flight. Like cancellation it is not a user-visible error.
var ErrSuperseded = errors.New("read superseded by a newer request")

// IsCanceled reports whether a read failed only because it was canceled
// or superseded. Such failures must not be surfaced to the user.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrSuperseded) || api.IsCanceled(err)
}

type fetchFunc func(ctx context.Context) (any, error)

type inflightRead struct {
	id         uuid.UUID
	gen        uint64
	cancel     context.CancelFunc
	background bool
}

// Reader coordinates reads into the cache. Per key it keeps a
// generation counter and at most one in-flight request: issuing a new
// read cancels the previous one and bumps the generation, and a
// response only applies while its generation is still current. An
// aborted request therefore never touches the cache, regardless of
// arrival order.
type Reader struct {
	mu       sync.Mutex
	cache    *cache.Cache
	limiter  *rate.Limiter
	log      *slog.Logger
	gens     map[cache.Key]uint64
	inflight map[cache.Key]*inflightRead
}

// NewReader returns a reader over c. The limiter paces background
// refetches so an invalidation burst does not stampede the server.
func NewReader(c *cache.Cache, limiter *rate.Limiter, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{
		cache:    c,
		limiter:  limiter,
		log:      log,
		gens:     make(map[cache.Key]uint64),
		inflight: make(map[cache.Key]*inflightRead),
	}
}

// Load returns the collection for key. A fresh cache hit returns
// immediately. A stale hit is returned as-is (stale data is servable,
// no flicker) while a background refetch is scheduled. A miss fetches
// synchronously; cancelling ctx cancels the fetch.
func (r *Reader) Load(ctx context.Context, key cache.Key, fetch fetchFunc) (any, error) {
	if entry, ok := r.cache.Get(key); ok {
		if entry.Stale {
			r.refetchAsync(key, fetch)
		}
		return entry.Collection, nil
	}
	return r.fetchNow(ctx, key, fetch)
}

// Refresh forces a blocking refetch for key, bypassing the cache. The
// retry affordance on load errors goes through here.
func (r *Reader) Refresh(ctx context.Context, key cache.Key, fetch fetchFunc) (any, error) {
	return r.fetchNow(ctx, key, fetch)
}

// begin registers a new in-flight foreground read for key, cancelling
// and superseding any previous one.
func (r *Reader) begin(parent context.Context, key cache.Key) (context.Context, *inflightRead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.inflight[key]; ok {
		prev.cancel()
	}
	r.gens[key]++
	ctx, cancel := context.WithCancel(parent)
	in := &inflightRead{
		id:     uuid.New(),
		gen:    r.gens[key],
		cancel: cancel,
	}
	r.inflight[key] = in
	return ctx, in
}

// settle finishes an in-flight read. The response is applied to the
// cache only when the read succeeded and is still the current
// generation for its key; a superseded or failed read changes nothing.
func (r *Reader) settle(key cache.Key, in *inflightRead, collection any, err error) (applied bool) {
	r.mu.Lock()
	current := r.gens[key] == in.gen
	if r.inflight[key] == in {
		delete(r.inflight, key)
	}
	r.mu.Unlock()
	in.cancel()

	if err != nil || !current {
		return false
	}
	r.cache.Set(key, collection)
	return true
}

func (r *Reader) fetchNow(ctx context.Context, key cache.Key, fetch fetchFunc) (any, error) {
	fctx, in := r.begin(ctx, key)
	collection, err := fetch(fctx)
	applied := r.settle(key, in, collection, err)
	if err != nil {
		if api.IsCanceled(err) {
			r.log.Debug("read canceled", "kind", string(key.Kind), "request", in.id.String())
		}
		return nil, err
	}
	if !applied {
		r.log.Debug("read superseded", "kind", string(key.Kind), "request", in.id.String())
		return nil, ErrSuperseded
	}
	return collection, nil
}

// refetchAsync schedules a background refetch for a stale entry. A key
// with a request already pending is left alone, so invalidating twice
// still yields a single refetch.
func (r *Reader) refetchAsync(key cache.Key, fetch fetchFunc) {
	r.mu.Lock()
	if _, pending := r.inflight[key]; pending {
		r.mu.Unlock()
		return
	}
	r.gens[key]++
	ctx, cancel := context.WithCancel(context.Background())
	in := &inflightRead{id: uuid.New(), gen: r.gens[key], cancel: cancel, background: true}
	r.inflight[key] = in
	r.mu.Unlock()
	go func() {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				r.settle(key, in, nil, err)
				return
			}
		}
		collection, err := fetch(ctx)
		r.settle(key, in, collection, err)
		if err != nil && !api.IsCanceled(err) {
			// The stale entry stays servable; next access tries again.
			r.log.Debug("background refetch failed", "kind", string(key.Kind), "error", err)
		}
	}()
}

// CancelAll aborts every in-flight read and invalidates their
// generations, so late responses cannot apply. Used on session changes
// and shutdown.
func (r *Reader) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, in := range r.inflight {
		in.cancel()
		r.gens[key]++
		delete(r.inflight, key)
	}
}
