package engine

import "librarian/internal/cache"

// The invalidation graph: after a mutation against a kind commits, these
// collections can no longer be trusted. Available-copy counts are
// derived server-side from active loans and reservations, so a write
// touching any one of books/loans/reservations can change the displayed
// availability and queue state of the other two. Invalidation is
// deliberately whole-collection rather than row-level; the extra
// refetching buys correctness with no bookkeeping.
var downstream = map[cache.Kind][]cache.Kind{
	cache.KindBooks:        {cache.KindBooks, cache.KindLoans, cache.KindReservations},
	cache.KindUsers:        {cache.KindUsers, cache.KindLoans, cache.KindBooks},
	cache.KindLoans:        {cache.KindLoans, cache.KindBooks, cache.KindReservations},
	cache.KindReservations: {cache.KindReservations, cache.KindBooks, cache.KindLoans},
}

// Downstream returns the kinds to invalidate after a committed mutation
// against kind. The result always includes kind itself.
func Downstream(kind cache.Kind) []cache.Kind {
	return downstream[kind]
}
