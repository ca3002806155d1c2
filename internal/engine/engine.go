package engine

// The engine is the client-side data-consistency layer: it keeps the
// independently fetched book/user/loan/reservation collections mutually
// consistent under optimistic writes, coordinates cancellation of
// superseded reads, and cycles everything on session changes. The CLI
// (and any other surface) talks only to this facade.

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"librarian/internal/api"
	"librarian/internal/cache"
	"librarian/internal/model"
	"librarian/internal/token"
)

// DefaultProlongDays is how far a loan is extended when the caller does
// not say otherwise.
const DefaultProlongDays = 30

// Options tune the engine; zero values pick sensible defaults.
type Options struct {
	Logger *slog.Logger
	// RefetchPerSecond paces background refetches of stale entries.
	RefetchPerSecond float64
	RefetchBurst     int
	// BooksPageSize and PanelPageSize override the built-in page sizes
	// for the catalog and the users/loans/reservations panels.
	BooksPageSize int
	PanelPageSize int
}

// Engine wires the cache, reader, mutation coordinator and token store
// together. All dependencies are explicit so tests can build isolated
// instances; nothing here is a package-level global.
type Engine struct {
	api         *api.Client
	cache       *cache.Cache
	reader      *Reader
	mutations   *Coordinator
	tokens      *token.Store
	views       *ViewState
	log         *slog.Logger
	unsubscribe func()
}

// New builds an engine on top of client and tokens. The engine
// subscribes to the token store: any credential change discards the
// whole cache and resets view state, because cached collections may
// belong to a different principal.
func New(client *api.Client, tokens *token.Store, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	perSecond := opts.RefetchPerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := opts.RefetchBurst
	if burst <= 0 {
		burst = 8
	}

	store := cache.New()
	e := &Engine{
		api:       client,
		cache:     store,
		reader:    NewReader(store, rate.NewLimiter(rate.Limit(perSecond), burst), log),
		mutations: NewCoordinator(store, log),
		tokens:    tokens,
		views:     NewViewStateWithSizes(opts.BooksPageSize, opts.PanelPageSize),
		log:       log,
	}
	e.unsubscribe = tokens.Subscribe(func(string) { e.resetSession() })
	return e
}

// Close cancels in-flight reads and detaches from the token store.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.reader.CancelAll()
}

// resetSession is the session boundary (login, logout, credential
// change): in-flight reads are cancelled so their responses cannot
// apply, the cache is discarded outright rather than invalidated, and
// every view goes back to defaults.
func (e *Engine) resetSession() {
	e.reader.CancelAll()
	e.cache.Reset()
	e.views.Reset()
	e.log.Info("session changed, cached collections discarded")
}

// --- session / auth ---

// Login exchanges credentials for a token and stores it. Storing the
// token fires the session boundary.
func (e *Engine) Login(ctx context.Context, username, password string) error {
	tok, err := e.api.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	return e.tokens.Write(tok)
}

// Register creates an account and logs it in.
func (e *Engine) Register(ctx context.Context, username, password string) error {
	tok, err := e.api.Register(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	return e.tokens.Write(tok)
}

// Logout clears the stored token, firing the session boundary.
func (e *Engine) Logout() error {
	return e.tokens.Clear()
}

// IsAuthenticated reports token presence. Token presence and role
// resolvability are deliberately separate conditions: see Role.
func (e *Engine) IsAuthenticated() bool {
	return e.tokens.Read() != ""
}

// Role resolves the current role from the token claims. RoleUnknown
// with IsAuthenticated true means a present-but-undecodable token: the
// session stays logged in, with no privileges granted client-side.
func (e *Engine) Role() model.Role {
	return token.RoleFromToken(e.tokens.Read())
}

// Me fetches the account behind the current token. Not cached: it is
// cheap and always wanted fresh.
func (e *Engine) Me(ctx context.Context) (model.User, error) {
	return e.api.Me(ctx)
}

// --- view state ---

// View returns the current query for a collection view.
func (e *Engine) View(kind cache.Kind) cache.Query {
	return e.views.Get(kind)
}

// SetPage moves a collection view to a page.
func (e *Engine) SetPage(kind cache.Kind, page int) {
	e.views.SetPage(kind, page)
}

// SetSize changes a view's page size, returning to the first page.
func (e *Engine) SetSize(kind cache.Kind, size int) {
	e.views.SetSize(kind, size)
}

// SetSort changes a view's sort, returning to the first page.
func (e *Engine) SetSort(kind cache.Kind, sortBy, sortOrder string) {
	e.views.SetSort(kind, sortBy, sortOrder)
}

// --- reads ---

// loadList runs one cached read for the view's current query.
func loadList[T any](e *Engine, ctx context.Context, kind cache.Kind, fetch func(context.Context, cache.Query) ([]T, error)) ([]T, error) {
	key := cache.NewKey(kind, e.views.Get(kind))
	collection, err := e.reader.Load(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx, key.Query())
	})
	if err != nil {
		return nil, err
	}
	list, _ := collection.([]T)
	return list, nil
}

// Books returns the catalog page the books view is looking at.
func (e *Engine) Books(ctx context.Context) ([]model.Book, error) {
	return loadList(e, ctx, cache.KindBooks, e.api.Books)
}

// Users returns the accounts page the users view is looking at.
func (e *Engine) Users(ctx context.Context) ([]model.User, error) {
	return loadList(e, ctx, cache.KindUsers, e.api.Users)
}

// Loans returns the loans page the loans view is looking at.
func (e *Engine) Loans(ctx context.Context) ([]model.Loan, error) {
	return loadList(e, ctx, cache.KindLoans, e.api.Loans)
}

// Reservations returns the reservations page the view is looking at.
func (e *Engine) Reservations(ctx context.Context) ([]model.Reservation, error) {
	return loadList(e, ctx, cache.KindReservations, e.api.Reservations)
}

// Reservation fetches one reservation fresh, bypassing the cache.
func (e *Engine) Reservation(ctx context.Context, reservationID string) (model.Reservation, error) {
	return e.api.Reservation(ctx, reservationID)
}

// reloadList forces a fetch for the view's current query, skipping any
// cached entry. This backs the retry affordance after a failed load and
// the explicit refresh in the CLI.
func reloadList[T any](e *Engine, ctx context.Context, kind cache.Kind, fetch func(context.Context, cache.Query) ([]T, error)) ([]T, error) {
	key := cache.NewKey(kind, e.views.Get(kind))
	collection, err := e.reader.Refresh(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx, key.Query())
	})
	if err != nil {
		return nil, err
	}
	list, _ := collection.([]T)
	return list, nil
}

// ReloadBooks refetches the current catalog page from the server.
func (e *Engine) ReloadBooks(ctx context.Context) ([]model.Book, error) {
	return reloadList(e, ctx, cache.KindBooks, e.api.Books)
}

// ReloadUsers refetches the current accounts page from the server.
func (e *Engine) ReloadUsers(ctx context.Context) ([]model.User, error) {
	return reloadList(e, ctx, cache.KindUsers, e.api.Users)
}

// ReloadLoans refetches the current loans page from the server.
func (e *Engine) ReloadLoans(ctx context.Context) ([]model.Loan, error) {
	return reloadList(e, ctx, cache.KindLoans, e.api.Loans)
}

// ReloadReservations refetches the current reservations page from the
// server.
func (e *Engine) ReloadReservations(ctx context.Context) ([]model.Reservation, error) {
	return reloadList(e, ctx, cache.KindReservations, e.api.Reservations)
}

// patchCollection lifts a typed slice transform into a cache patch.
// Collections of other types pass through untouched.
func patchCollection[T any](fn func([]T) []T) func(any) any {
	return func(collection any) any {
		list, ok := collection.([]T)
		if !ok {
			return collection
		}
		return fn(list)
	}
}

// --- book mutations ---

// CreateBook adds a title to the catalog. On commit the books view
// returns to the first page, since the new row's sort position is
// unpredictable.
func (e *Engine) CreateBook(ctx context.Context, payload api.CreateBookPayload) error {
	err := e.mutations.Run(ctx, Mutation{
		Kind: cache.KindBooks,
		Op:   OpCreate,
		Call: func(ctx context.Context) error {
			_, err := e.api.CreateBook(ctx, payload)
			return err
		},
	})
	if err != nil {
		return err
	}
	e.views.ResetPage(cache.KindBooks)
	return nil
}

// UpdateBook edits a title, optimistically projecting the new values
// into every cached books page.
func (e *Engine) UpdateBook(ctx context.Context, bookID string, payload api.UpdateBookPayload) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindBooks,
		EntityID: bookID,
		Op:       OpUpdate,
		Patch: patchCollection(func(books []model.Book) []model.Book {
			out := make([]model.Book, len(books))
			copy(out, books)
			for i := range out {
				if out[i].ID == bookID {
					out[i].Title = payload.Title
					out[i].Author = payload.Author
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			_, err := e.api.UpdateBook(ctx, bookID, payload)
			return err
		},
	})
}

// DeleteBook removes a title, optimistically dropping its row.
func (e *Engine) DeleteBook(ctx context.Context, bookID string) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindBooks,
		EntityID: bookID,
		Op:       OpDelete,
		Patch: patchCollection(func(books []model.Book) []model.Book {
			out := make([]model.Book, 0, len(books))
			for _, b := range books {
				if b.ID != bookID {
					out = append(out, b)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			return e.api.DeleteBook(ctx, bookID)
		},
	})
}

// Borrow creates a loan of the book for the current account. The
// identity is keyed on the book, so double-submitting a borrow for the
// same title is rejected as busy while the first is in flight.
func (e *Engine) Borrow(ctx context.Context, bookID string) error {
	me, err := e.api.Me(ctx)
	if err != nil {
		return err
	}
	err = e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindLoans,
		EntityID: bookID,
		Op:       OpCreate,
		Call: func(ctx context.Context) error {
			_, err := e.api.CreateLoan(ctx, api.CreateLoanPayload{UserID: me.ID, BookID: bookID})
			return err
		},
	})
	if err != nil {
		return err
	}
	e.views.ResetPage(cache.KindLoans)
	return nil
}

// --- user mutations ---

// CreateUser adds an account; staff only server-side.
func (e *Engine) CreateUser(ctx context.Context, payload api.CreateUserPayload) error {
	err := e.mutations.Run(ctx, Mutation{
		Kind: cache.KindUsers,
		Op:   OpCreate,
		Call: func(ctx context.Context) error {
			_, err := e.api.CreateUser(ctx, payload)
			return err
		},
	})
	if err != nil {
		return err
	}
	e.views.ResetPage(cache.KindUsers)
	return nil
}

// UpdateUser renames an account, optimistically projecting the new
// username. The password never lives in the cache.
func (e *Engine) UpdateUser(ctx context.Context, userID string, payload api.UpdateUserPayload) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindUsers,
		EntityID: userID,
		Op:       OpUpdate,
		Patch: patchCollection(func(users []model.User) []model.User {
			out := make([]model.User, len(users))
			copy(out, users)
			for i := range out {
				if out[i].ID == userID {
					out[i].Username = payload.Username
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			_, err := e.api.UpdateUser(ctx, userID, payload)
			return err
		},
	})
}

// DeleteUser removes an account, optimistically dropping its row.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindUsers,
		EntityID: userID,
		Op:       OpDelete,
		Patch: patchCollection(func(users []model.User) []model.User {
			out := make([]model.User, 0, len(users))
			for _, u := range users {
				if u.ID != userID {
					out = append(out, u)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			return e.api.DeleteUser(ctx, userID)
		},
	})
}

// --- loan mutations ---

// ProlongLoan extends a loan's due date, optimistically moving the
// cached date forward. days <= 0 means the default extension.
func (e *Engine) ProlongLoan(ctx context.Context, loanID string, days int) error {
	if days <= 0 {
		days = DefaultProlongDays
	}
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindLoans,
		EntityID: loanID,
		Op:       OpProlong,
		Patch: patchCollection(func(loans []model.Loan) []model.Loan {
			out := make([]model.Loan, len(loans))
			copy(out, loans)
			for i := range out {
				if out[i].ID == loanID {
					out[i].ReturnDate = out[i].ReturnDate.AddDate(0, 0, days)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			_, err := e.api.ProlongLoan(ctx, loanID, days)
			return err
		},
	})
}

// CancelLoan returns the copy, optimistically dropping the loan row.
func (e *Engine) CancelLoan(ctx context.Context, loanID string) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindLoans,
		EntityID: loanID,
		Op:       OpCancel,
		Patch: patchCollection(func(loans []model.Loan) []model.Loan {
			out := make([]model.Loan, 0, len(loans))
			for _, l := range loans {
				if l.ID != loanID {
					out = append(out, l)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			return e.api.CancelLoan(ctx, loanID)
		},
	})
}

// --- reservation mutations ---

// Reserve places a claim on a book for the current account.
func (e *Engine) Reserve(ctx context.Context, bookID string) error {
	me, err := e.api.Me(ctx)
	if err != nil {
		return err
	}
	err = e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindReservations,
		EntityID: bookID,
		Op:       OpCreate,
		Call: func(ctx context.Context) error {
			_, err := e.api.CreateReservation(ctx, api.CreateReservationPayload{UserID: me.ID, BookID: bookID})
			return err
		},
	})
	if err != nil {
		return err
	}
	e.views.ResetPage(cache.KindReservations)
	return nil
}

// CancelReservation withdraws a claim, optimistically dropping its row.
func (e *Engine) CancelReservation(ctx context.Context, reservationID string) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindReservations,
		EntityID: reservationID,
		Op:       OpCancel,
		Patch: patchCollection(func(reservations []model.Reservation) []model.Reservation {
			out := make([]model.Reservation, 0, len(reservations))
			for _, r := range reservations {
				if r.ID != reservationID {
					out = append(out, r)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			return e.api.CancelReservation(ctx, reservationID)
		},
	})
}

// LoanFromReservation converts a READY reservation into a loan: the
// loan is created for the reservation's own user and book, then the
// reservation is deleted. The row is dropped optimistically.
func (e *Engine) LoanFromReservation(ctx context.Context, reservation model.Reservation) error {
	var loanCreated bool
	err := e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindReservations,
		EntityID: reservation.ID,
		Op:       OpConvert,
		Patch: patchCollection(func(reservations []model.Reservation) []model.Reservation {
			out := make([]model.Reservation, 0, len(reservations))
			for _, r := range reservations {
				if r.ID != reservation.ID {
					out = append(out, r)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			_, err := e.api.CreateLoan(ctx, api.CreateLoanPayload{
				UserID: reservation.User.ID,
				BookID: reservation.Book.ID,
			})
			if err != nil {
				return err
			}
			loanCreated = true
			return e.api.CancelReservation(ctx, reservation.ID)
		},
	})
	if err != nil && loanCreated {
		// The create leg committed even though the deletion failed, so
		// the loan and copy counts have moved on the server.
		e.cache.Invalidate(cache.KindLoans, cache.KindBooks)
	}
	return err
}

// ExpireReservations runs the administrative sweep that marks overdue
// queued reservations EXPIRED, returning how many were updated. No
// optimistic projection: the server decides which rows are affected.
func (e *Engine) ExpireReservations(ctx context.Context) (int, error) {
	var updated int
	err := e.mutations.Run(ctx, Mutation{
		Kind: cache.KindReservations,
		Op:   OpExpire,
		Call: func(ctx context.Context) error {
			n, err := e.api.ExpireReservations(ctx)
			updated = n
			return err
		},
	})
	return updated, err
}

// CleanupExpiredReservations deletes every EXPIRED reservation,
// optimistically dropping those rows.
func (e *Engine) CleanupExpiredReservations(ctx context.Context) error {
	return e.mutations.Run(ctx, Mutation{
		Kind:     cache.KindReservations,
		EntityID: "expired",
		Op:       OpDelete,
		Patch: patchCollection(func(reservations []model.Reservation) []model.Reservation {
			out := make([]model.Reservation, 0, len(reservations))
			for _, r := range reservations {
				if r.Status != model.ReservationExpired {
					out = append(out, r)
				}
			}
			return out
		}),
		Call: func(ctx context.Context) error {
			return e.api.CleanupExpiredReservations(ctx)
		},
	})
}

// Cache exposes the underlying cache for tests and diagnostics.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}
