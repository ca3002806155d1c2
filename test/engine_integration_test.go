package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"librarian/internal/api"
	"librarian/internal/cache"
	"librarian/internal/engine"
	"librarian/internal/fakeapi"
	"librarian/internal/model"
	"librarian/internal/token"
)

// EngineIntegrationTestSuite exercises the full client stack against the
// in-memory library service: token store, REST client, cache and engine.
type EngineIntegrationTestSuite struct {
	suite.Suite
	server *fakeapi.Server
	tokens *token.Store
	engine *engine.Engine
	ctx    context.Context
}

// SetupTest runs before each test => fresh server and engine
func (s *EngineIntegrationTestSuite) SetupTest() {
	s.server = fakeapi.New()
	s.tokens = token.NewMemoryStore()
	client := api.New(s.server.URL(), s.tokens)
	s.engine = engine.New(client, s.tokens, engine.Options{})
	s.ctx = context.Background()
}

// TearDownTest runs after each test => release the listener
func (s *EngineIntegrationTestSuite) TearDownTest() {
	s.engine.Close()
	s.server.Close()
}

// loginAs seeds an account and logs the engine in as it, returning the id.
func (s *EngineIntegrationTestSuite) loginAs(username, role string) string {
	id := s.server.SeedAccount(username, "secret", role)
	s.Require().NoError(s.engine.Login(s.ctx, username, "secret"))
	return id
}

func (s *EngineIntegrationTestSuite) TestRegisterLoginAndRole() {
	s.False(s.engine.IsAuthenticated())
	s.Equal(model.RoleUnknown, s.engine.Role())

	s.Require().NoError(s.engine.Register(s.ctx, "alice", "secret"))
	s.True(s.engine.IsAuthenticated())
	s.Equal(model.RoleUser, s.engine.Role())

	me, err := s.engine.Me(s.ctx)
	s.Require().NoError(err)
	s.Equal("alice", me.Username)

	s.Require().NoError(s.engine.Logout())
	s.False(s.engine.IsAuthenticated())
}

func (s *EngineIntegrationTestSuite) TestDuplicateRegisterConflict() {
	s.Require().NoError(s.engine.Register(s.ctx, "alice", "secret"))
	s.Require().NoError(s.engine.Logout())

	err := s.engine.Register(s.ctx, "alice", "other")
	s.Require().Error(err)
	s.True(api.IsConflict(err))
	s.False(s.engine.IsAuthenticated())
}

func (s *EngineIntegrationTestSuite) TestLoginBadPasswordUnauthorized() {
	s.server.SeedAccount("alice", "secret", "USER")

	err := s.engine.Login(s.ctx, "alice", "wrong")
	s.Require().Error(err)
	s.True(api.IsUnauthorized(err))
	s.False(s.engine.IsAuthenticated())
}

func (s *EngineIntegrationTestSuite) TestStaffRoleFromToken() {
	s.loginAs("marian", "LIBRARIAN")
	s.Equal(model.RoleLibrarian, s.engine.Role())
}

func (s *EngineIntegrationTestSuite) TestBorrowDecrementsCopies() {
	s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 2)

	s.Require().NoError(s.engine.Borrow(s.ctx, bookID))

	available, total, ok := s.server.BookCopies(bookID)
	s.Require().True(ok)
	s.Equal(1, available)
	s.Equal(2, total)

	loans, err := s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loans, 1)
	s.Equal("Dune", loans[0].Book.Title)
	s.Equal("alice", loans[0].User.Username)
}

func (s *EngineIntegrationTestSuite) TestBorrowLastCopyConflictRollsBack() {
	s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)

	s.Require().NoError(s.engine.Borrow(s.ctx, bookID))

	// Cache a loans page, then lose the race for a copy that is gone.
	loans, err := s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loans, 1)

	err = s.engine.Borrow(s.ctx, bookID)
	s.Require().Error(err)
	s.True(api.IsConflict(err))
	s.Equal("no copies available", api.Message(err, ""))

	// The failed borrow must not leave a phantom loan behind.
	loans, err = s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Len(loans, 1)
	s.Equal(1, s.server.LoanCount())
}

func (s *EngineIntegrationTestSuite) TestProlongExtendsReturnDate() {
	s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)
	s.Require().NoError(s.engine.Borrow(s.ctx, bookID))

	loans, err := s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loans, 1)
	before := loans[0].ReturnDate

	s.Require().NoError(s.engine.ProlongLoan(s.ctx, loans[0].ID, 7))

	loans, err = s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loans, 1)
	s.Equal(before.AddDate(0, 0, 7).Unix(), loans[0].ReturnDate.Unix())
}

func (s *EngineIntegrationTestSuite) TestReturnRestoresCopy() {
	s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)
	s.Require().NoError(s.engine.Borrow(s.ctx, bookID))

	loans, err := s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loans, 1)

	s.Require().NoError(s.engine.CancelLoan(s.ctx, loans[0].ID))

	available, _, ok := s.server.BookCopies(bookID)
	s.Require().True(ok)
	s.Equal(1, available)
	s.Equal(0, s.server.LoanCount())
}

func (s *EngineIntegrationTestSuite) TestReservationQueuedWhenNoCopies() {
	s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)
	s.Require().NoError(s.engine.Borrow(s.ctx, bookID))

	s.Require().NoError(s.engine.Reserve(s.ctx, bookID))

	reservations, err := s.engine.Reservations(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(reservations, 1)
	s.Equal(model.ReservationQueued, reservations[0].Status)
}

func (s *EngineIntegrationTestSuite) TestCheckoutConsumesReadyReservation() {
	userID := s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)
	resID := s.server.SeedReservation(userID, bookID, "READY", time.Now().Add(48*time.Hour))

	reservation, err := s.engine.Reservation(s.ctx, resID)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.LoanFromReservation(s.ctx, reservation))

	loans, err := s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Len(loans, 1)

	reservations, err := s.engine.Reservations(s.ctx)
	s.Require().NoError(err)
	s.Empty(reservations)
}

func (s *EngineIntegrationTestSuite) TestHalfDoneCheckoutStillShowsLoan() {
	userID := s.loginAs("alice", "USER")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)

	// Warm the loans cache before the conversion.
	loans, err := s.engine.Loans(s.ctx)
	s.Require().NoError(err)
	s.Require().Empty(loans)

	// The reservation vanished server-side: the loan creation commits
	// but the deletion leg 404s.
	ghost := model.Reservation{
		ID:   "gone",
		User: model.User{ID: userID},
		Book: model.Book{ID: bookID},
	}
	err = s.engine.LoanFromReservation(s.ctx, ghost)
	s.Require().Error(err)
	s.Equal(1, s.server.LoanCount())

	// The created loan must become visible without any further
	// mutation committing.
	s.Eventually(func() bool {
		loans, err := s.engine.Loans(s.ctx)
		return err == nil && len(loans) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *EngineIntegrationTestSuite) TestExpireSweepAndCleanup() {
	userID := s.loginAs("marian", "LIBRARIAN")
	bookID := s.server.SeedBook("Dune", "Frank Herbert", 1)
	s.server.SeedReservation(userID, bookID, "QUEUED", time.Now().Add(-time.Hour))
	s.server.SeedReservation(userID, bookID, "READY", time.Now().Add(48*time.Hour))

	updated, err := s.engine.ExpireReservations(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, updated)

	s.Require().NoError(s.engine.CleanupExpiredReservations(s.ctx))

	reservations, err := s.engine.Reservations(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(reservations, 1)
	s.Equal(model.ReservationReady, reservations[0].Status)
}

func (s *EngineIntegrationTestSuite) TestCredentialChangeDiscardsCache() {
	s.loginAs("alice", "USER")
	s.server.SeedBook("Dune", "Frank Herbert", 1)

	_, err := s.engine.Books(s.ctx)
	s.Require().NoError(err)
	s.Positive(s.engine.Cache().Len())

	s.Require().NoError(s.engine.Logout())
	s.Zero(s.engine.Cache().Len())

	// A fresh login also crosses the boundary.
	s.loginAs("bob", "USER")
	s.Zero(s.engine.Cache().Len())
}

func (s *EngineIntegrationTestSuite) TestCreateBookResetsPagination() {
	s.loginAs("marian", "LIBRARIAN")
	s.engine.SetPage(cache.KindBooks, 3)

	s.Require().NoError(s.engine.CreateBook(s.ctx, api.CreateBookPayload{
		Title:       "Dune",
		Author:      "Frank Herbert",
		TotalCopies: 2,
	}))

	s.Equal(0, s.engine.View(cache.KindBooks).Page)

	books, err := s.engine.Books(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(books, 1)
	s.Equal(2, books[0].AvailableCopies)
}

func (s *EngineIntegrationTestSuite) TestReloadBypassesFreshCache() {
	s.loginAs("alice", "USER")
	s.server.SeedBook("Dune", "Frank Herbert", 1)

	books, err := s.engine.Books(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(books, 1)

	// Another client adds a book; our cache entry is still fresh and
	// hides it until an explicit reload.
	s.server.SeedBook("Hyperion", "Dan Simmons", 1)

	books, err = s.engine.Books(s.ctx)
	s.Require().NoError(err)
	s.Len(books, 1, "fresh cache entry served as-is")

	books, err = s.engine.ReloadBooks(s.ctx)
	s.Require().NoError(err)
	s.Len(books, 2)

	// The reload result becomes the cached entry.
	books, err = s.engine.Books(s.ctx)
	s.Require().NoError(err)
	s.Len(books, 2)
}

func (s *EngineIntegrationTestSuite) TestConfiguredPageSizeShapesRequests() {
	tokens := token.NewMemoryStore()
	client := api.New(s.server.URL(), tokens)
	eng := engine.New(client, tokens, engine.Options{BooksPageSize: 5, PanelPageSize: 2})
	defer eng.Close()

	s.server.SeedAccount("alice", "secret", "USER")
	s.Require().NoError(eng.Login(s.ctx, "alice", "secret"))
	for i := 0; i < 7; i++ {
		s.server.SeedBook(fmt.Sprintf("Book %d", i), "Author", 1)
	}

	s.Equal(5, eng.View(cache.KindBooks).Size)
	books, err := eng.Books(s.ctx)
	s.Require().NoError(err)
	s.Len(books, 5)

	// The baseline size also survives the session boundary.
	s.Require().NoError(eng.Logout())
	s.Equal(5, eng.View(cache.KindBooks).Size)
}

func (s *EngineIntegrationTestSuite) TestUnauthenticatedRequestRejected() {
	s.server.SeedBook("Dune", "Frank Herbert", 1)

	_, err := s.engine.Books(s.ctx)
	s.Require().Error(err)
	s.True(api.IsUnauthorized(err))
}

func TestEngineIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(EngineIntegrationTestSuite))
}
