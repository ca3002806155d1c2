package engine

import (
	"sync"

	"librarian/internal/cache"
)

// ViewState tracks the page/size/sort each collection view is currently
// showing. It feeds cache key construction, so flipping a page or a sort
// naturally lands on a different cache entry. Everything resets to
// defaults on a session change, since a different principal may see
// entirely different collections.
type ViewState struct {
	mu       sync.Mutex
	defaults map[cache.Kind]cache.Query
	queries  map[cache.Kind]cache.Query
}

// NewViewState returns view state at the built-in defaults for every
// kind.
func NewViewState() *ViewState {
	return NewViewStateWithSizes(0, 0)
}

// NewViewStateWithSizes returns view state whose baseline page sizes
// come from configuration: booksSize for the catalog, panelSize for
// users, loans and reservations. Zero keeps a collection's built-in
// default. The baseline survives Reset, unlike page and sort.
func NewViewStateWithSizes(booksSize, panelSize int) *ViewState {
	defaults := make(map[cache.Kind]cache.Query)
	if booksSize > 0 {
		defaults[cache.KindBooks] = cache.Query{Size: booksSize}
	}
	if panelSize > 0 {
		for _, kind := range []cache.Kind{cache.KindUsers, cache.KindLoans, cache.KindReservations} {
			defaults[kind] = cache.Query{Size: panelSize}
		}
	}
	v := &ViewState{defaults: defaults}
	v.queries = v.baseline()
	return v
}

// baseline copies the configured defaults into a fresh query map.
func (v *ViewState) baseline() map[cache.Kind]cache.Query {
	queries := make(map[cache.Kind]cache.Query, len(v.defaults))
	for kind, q := range v.defaults {
		queries[kind] = q
	}
	return queries
}

// Get returns the current raw query for kind; the zero Query means
// "all defaults" and is normalized by cache.NewKey.
func (v *ViewState) Get(kind cache.Kind) cache.Query {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.queries[kind]
}

// SetPage moves the view to a page.
func (v *ViewState) SetPage(kind cache.Kind, page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.queries[kind]
	if page < 0 {
		page = 0
	}
	q.Page = page
	v.queries[kind] = q
}

// SetSize changes the page size and goes back to the first page.
func (v *ViewState) SetSize(kind cache.Kind, size int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.queries[kind]
	q.Size = size
	q.Page = 0
	v.queries[kind] = q
}

// SetSort changes the sort and goes back to the first page, since row
// positions under the new order are unrelated to the old one.
func (v *ViewState) SetSort(kind cache.Kind, sortBy, sortOrder string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.queries[kind]
	q.SortBy = sortBy
	q.SortOrder = sortOrder
	q.Page = 0
	v.queries[kind] = q
}

// ResetPage puts the view back on the first page, keeping size and sort.
// Called after a create commits: the new row's sort position is
// unpredictable, page zero is the only sensible place to look for it.
func (v *ViewState) ResetPage(kind cache.Kind) {
	v.SetPage(kind, 0)
}

// Reset drops every view back to its baseline, keeping configured page
// sizes but discarding page positions and sorts.
func (v *ViewState) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queries = v.baseline()
}
