package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/cache"
	"librarian/internal/token"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *token.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tokens := token.NewMemoryStore()
	return New(server.URL, tokens), tokens
}

func TestBooks_SendsBearerAndListQuery(t *testing.T) {
	var gotAuth, gotQuery string
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"b1","title":"Dune","author":"Herbert","totalCopies":3,"availableCopies":1}]`))
	})
	require.NoError(t, tokens.Write("tok-123"))

	books, err := client.Books(context.Background(), cache.NewKey(cache.KindBooks, cache.Query{Page: 2, SortBy: "title"}).Query())

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "size=20")
	assert.Contains(t, gotQuery, "sortBy=title")
	assert.Contains(t, gotQuery, "sortOrder=asc")
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, 1, books[0].AvailableCopies)
}

func TestClient_ConfiguredTimeoutCutsSlowRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)
	client := NewWithTimeout(server.URL, token.NewMemoryStore(), 10*time.Millisecond)

	start := time.Now()
	_, err := client.Books(context.Background(), cache.NewKey(cache.KindBooks, cache.Query{}).Query())

	require.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	// Client-side timeouts fall under the canceled bucket, not the
	// user-facing error taxonomy.
	assert.True(t, IsCanceled(err))
}

func TestNewWithTimeout_ZeroMeansDefault(t *testing.T) {
	client := NewWithTimeout("http://localhost", token.NewMemoryStore(), 0)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
}

func TestClient_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.Books(context.Background(), cache.Query{Size: 20})

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_ConflictMessageSurfacedVerbatim(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"no copies available"}`))
	})

	_, err := client.CreateLoan(context.Background(), CreateLoanPayload{UserID: "u1", BookID: "b1"})

	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, "no copies available", Message(err, "fallback"))
}

func TestClient_PlainTextErrorBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`username already taken`))
	})

	_, err := client.CreateUser(context.Background(), CreateUserPayload{Username: "dup"})

	require.Error(t, err)
	assert.Equal(t, "username already taken", Message(err, "fallback"))
}

func TestClient_EmptyWriteBodyMeansNoEntity(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	book, err := client.UpdateBook(context.Background(), "b1", UpdateBookPayload{Title: "x", Author: "y"})

	require.NoError(t, err)
	assert.Nil(t, book, "empty body is no entity, not an error")
}

func TestClient_CancellationIsNotAUserError(t *testing.T) {
	started := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Loans(ctx, cache.Query{Size: 10})

	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.False(t, IsRetryable(err))
}

func TestLoans_DatesNormalizedOnIngestion(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{
			"id":"l1",
			"borrowDate":"2026-08-01T10:00:00Z",
			"returnDate":"2026-08-31T10:00:00Z",
			"user":{"id":"u1","username":"reader"},
			"book":{"id":"b1","title":"Dune","author":"Herbert","totalCopies":3,"availableCopies":1}
		}]`))
	})

	loans, err := client.Loans(context.Background(), cache.Query{Size: 10})

	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC), loans[0].ReturnDate)
	// role absent on the wire defaults to USER
	assert.Equal(t, "USER", string(loans[0].User.Role))
}

func TestParseWireTime_RoundTrip(t *testing.T) {
	for _, raw := range []string{
		"2026-08-31T10:15:30Z",
		"2026-08-31T10:15:30+02:00",
	} {
		parsed, err := ParseWireTime(raw)
		require.NoError(t, err)

		again, err := ParseWireTime(FormatWireTime(parsed))
		require.NoError(t, err)
		assert.True(t, parsed.Equal(again), "round-tripped date must name the same instant")
	}
}

func TestParseWireTime_AcceptsZonelessAndDateOnly(t *testing.T) {
	zoneless, err := ParseWireTime("2026-08-31T10:15:30")
	require.NoError(t, err)
	assert.Equal(t, 10, zoneless.Hour())

	dateOnly, err := ParseWireTime("2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, time.August, dateOnly.Month())

	_, err = ParseWireTime("31/08/2026")
	assert.Error(t, err)
}

func TestExpireReservations_ReadsUpdatedCount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/reservations/expire", r.URL.Path)
		_, _ = w.Write([]byte(`{"updated":4}`))
	})

	updated, err := client.ExpireReservations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, updated)
}
