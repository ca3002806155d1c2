package cache

// Kind names one server-owned entity collection.
type Kind string

const (
	KindBooks        Kind = "books"
	KindUsers        Kind = "users"
	KindLoans        Kind = "loans"
	KindReservations Kind = "reservations"
)

// Sort orders as the API spells them in the sortOrder query parameter.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Default page sizes: the catalog grid shows more rows than the
// dashboard panels.
const (
	DefaultBooksPageSize = 20
	DefaultPanelPageSize = 10
)

// Query carries the raw, possibly partial list parameters as a caller
// provides them. Zero values mean "absent": Size 0, SortBy "" and
// SortOrder "" are filled in by NewKey. Page 0 is a real value (the
// first page).
type Query struct {
	Page      int
	Size      int
	SortBy    string
	SortOrder string
}

// Key is the normalized fingerprint of one paginated, sorted query
// against one entity kind. Two equivalent queries, one spelling its
// defaults out and one omitting them, must produce the same Key, so the
// cache never holds duplicate entries for the same server response.
// Keys are comparable and used directly as map keys.
type Key struct {
	Kind      Kind
	Page      int
	Size      int
	SortBy    string
	SortOrder string
}

// NewKey normalizes a query into a stable cache key, filling absent
// optional parameters with the kind's defaults.
func NewKey(kind Kind, q Query) Key {
	k := Key{
		Kind:      kind,
		Page:      q.Page,
		Size:      q.Size,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if k.Page < 0 {
		k.Page = 0
	}
	if k.Size <= 0 {
		k.Size = DefaultSize(kind)
	}
	if k.SortBy == "" {
		k.SortBy, k.SortOrder = DefaultSort(kind)
	} else if k.SortOrder == "" {
		k.SortOrder = SortAsc
	}
	return k
}

// Query converts the key back into explicit list parameters.
func (k Key) Query() Query {
	return Query{Page: k.Page, Size: k.Size, SortBy: k.SortBy, SortOrder: k.SortOrder}
}

// DefaultSize returns the page size used when a caller does not ask for
// one.
func DefaultSize(kind Kind) int {
	if kind == KindBooks {
		return DefaultBooksPageSize
	}
	return DefaultPanelPageSize
}

// DefaultSort returns the sort applied when a caller does not ask for
// one. Reservations are shown newest first; the other collections keep
// the server's natural order.
func DefaultSort(kind Kind) (sortBy, sortOrder string) {
	if kind == KindReservations {
		return "createdAt", SortDesc
	}
	return "", ""
}
