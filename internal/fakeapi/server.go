// Package fakeapi is an in-memory stand-in for the library service,
// implementing the v1 REST contract the client consumes. It exists for
// tests: the engine and CLI are exercised against it instead of a real
// backend. Behavior mirrors the server the client was written for,
// including copy accounting and conflict responses.
package fakeapi

import (
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const signingSecret = "fakeapi-secret"

type account struct {
	ID           string
	Username     string
	PasswordHash []byte
	Role         string // USER, LIBRARIAN, ADMIN
}

type book struct {
	ID              string
	Title           string
	Author          string
	TotalCopies     int
	AvailableCopies int
}

type loan struct {
	ID         string
	UserID     string
	BookID     string
	BorrowDate time.Time
	ReturnDate time.Time
}

type reservation struct {
	ID        string
	UserID    string
	BookID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Status    string // QUEUED, READY, EXPIRED
}

// Server holds the in-memory state behind the fake API.
type Server struct {
	mu           sync.Mutex
	accounts     map[string]*account
	books        map[string]*book
	loans        map[string]*loan
	reservations map[string]*reservation
	now          func() time.Time

	router *gin.Engine
	http   *httptest.Server
}

// New starts a fake library service on a local listener.
func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		accounts:     make(map[string]*account),
		books:        make(map[string]*book),
		loans:        make(map[string]*loan),
		reservations: make(map[string]*reservation),
		now:          time.Now,
	}
	s.router = s.routes()
	s.http = httptest.NewServer(s.router)
	return s
}

// URL is the base URL clients should point at.
func (s *Server) URL() string {
	return s.http.URL
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.http.Close()
}

// SetNow overrides the server clock, for expiry tests.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SeedAccount registers an account directly, returning its id.
func (s *Server) SeedAccount(username, password, role string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &account{ID: uuid.NewString(), Username: username, PasswordHash: hash, Role: role}
	s.accounts[acc.ID] = acc
	return acc.ID
}

// SeedBook adds a catalog entry with all copies available, returning
// its id.
func (s *Server) SeedBook(title, author string, totalCopies int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &book{
		ID:              uuid.NewString(),
		Title:           title,
		Author:          author,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}
	s.books[b.ID] = b
	return b.ID
}

// SeedReservation adds a reservation in the given status, returning its
// id.
func (s *Server) SeedReservation(userID, bookID, status string, expiresAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &reservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
		Status:    status,
	}
	s.reservations[r.ID] = r
	return r.ID
}

// BookCopies reports the stored copy counts for a book, for assertions.
func (s *Server) BookCopies(id string) (available, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.books[id]
	if !ok {
		return 0, 0, false
	}
	return stored.AvailableCopies, stored.TotalCopies, true
}

// LoanCount reports how many loans exist, for assertions.
func (s *Server) LoanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loans)
}

func (s *Server) issueToken(acc *account) string {
	claims := jwt.MapClaims{
		"sub":   acc.ID,
		"roles": []string{"ROLE_" + acc.Role},
		"exp":   s.now().Add(24 * time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) accountByUsername(username string) *account {
	for _, acc := range s.accounts {
		if acc.Username == username {
			return acc
		}
	}
	return nil
}

// listParams reads the optional page/size/sortBy/sortOrder query.
func listParams(c *gin.Context, defaultSize int) (page, size int, sortBy, sortOrder string) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSize)))
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultSize
	}
	return page, size, c.Query("sortBy"), c.DefaultQuery("sortOrder", "asc")
}

// paginate slices one page out of a sorted list.
func paginate[T any](items []T, page, size int) []T {
	start := page * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortSlice[T any](items []T, less func(a, b T) bool, descending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
