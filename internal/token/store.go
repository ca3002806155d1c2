package token

// The token store is the single holder of the bearer credential for the
// whole process. It mirrors writes into the OS keyring so separate
// invocations of the CLI share the same session, and it broadcasts every
// change to subscribers so the engine can discard per-principal state.

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "librarian"
	tokenKey    = "auth_token"
)

// Store holds the current bearer token. The zero value is not usable;
// construct with NewStore or NewMemoryStore.
type Store struct {
	mu      sync.Mutex
	token   string
	persist bool
	subs    map[int]func(string)
	nextSub int
}

// NewStore returns a store backed by the OS keyring, seeded with any
// token a previous process left there. A missing or unreadable keyring
// entry just means "not logged in".
func NewStore() *Store {
	s := &Store{persist: true, subs: make(map[int]func(string))}
	if value, err := keyring.Get(serviceName, tokenKey); err == nil {
		s.token = value
	}
	return s
}

// NewMemoryStore returns a store without keyring persistence. Tests use
// this so they never touch the host keyring.
func NewMemoryStore() *Store {
	return &Store{subs: make(map[int]func(string))}
}

// Read returns the current token, empty when not logged in.
func (s *Store) Read() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Write replaces the token, notifies subscribers and persists it.
// Subscribers always hear about the credential that is now live, even
// when the keyring write fails; the error only reports that other
// processes will not see it.
func (s *Store) Write(tok string) error {
	s.mu.Lock()
	s.token = tok
	persist := s.persist
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(tok)
	}
	if persist {
		return keyring.Set(serviceName, tokenKey, tok)
	}
	return nil
}

// Clear removes the token everywhere. Clearing an already-empty store
// is not an error, and subscribers are notified even when the keyring
// delete fails, matching Write.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	persist := s.persist
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn("")
	}
	if persist {
		if err := keyring.Delete(serviceName, tokenKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Subscribe registers a callback invoked with the new token value on
// every Write or Clear. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(token string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs copies the subscriber list so callbacks run outside the
// lock. Callers must hold s.mu.
func (s *Store) snapshotSubs() []func(string) {
	out := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
