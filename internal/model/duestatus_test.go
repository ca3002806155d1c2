package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Fixed observation point, mid-afternoon so the midnight-to-midnight
// rounding actually matters.
var testNow = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func TestDueStatusAt_DueToday(t *testing.T) {
	returnDate := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	status := DueStatusAt(testNow, returnDate)

	assert.Equal(t, DueToday, status.Kind)
	assert.Equal(t, 0, status.Days)
	assert.Equal(t, "Due today", status.Label())
}

func TestDueStatusAt_OverdueByOneDay(t *testing.T) {
	returnDate := testNow.AddDate(0, 0, -1)

	status := DueStatusAt(testNow, returnDate)

	assert.Equal(t, DueOverdue, status.Kind)
	assert.Equal(t, 1, status.Days)
	assert.Equal(t, "Overdue by 1 day", status.Label())
}

func TestDueStatusAt_OnTrackInFiveDays(t *testing.T) {
	returnDate := testNow.AddDate(0, 0, 5)

	status := DueStatusAt(testNow, returnDate)

	assert.Equal(t, DueOnTrack, status.Kind)
	assert.Equal(t, 5, status.Days)
	assert.Equal(t, "Due in 5 days", status.Label())
}

func TestDueStatusAt_DueSoonBoundary(t *testing.T) {
	// Exactly three days out is still "due soon", four is on track.
	soon := DueStatusAt(testNow, testNow.AddDate(0, 0, 3))
	assert.Equal(t, DueSoon, soon.Kind)
	assert.Equal(t, 3, soon.Days)

	onTrack := DueStatusAt(testNow, testNow.AddDate(0, 0, 4))
	assert.Equal(t, DueOnTrack, onTrack.Kind)
}

func TestDueStatusAt_LateEveningReturnStillSameDay(t *testing.T) {
	// A due date at 23:59 today must not round up into tomorrow.
	returnDate := time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)

	status := DueStatusAt(testNow, returnDate)

	assert.Equal(t, DueToday, status.Kind)
}

func TestDaysUntil_CrossesTimezone(t *testing.T) {
	// Server timestamps can carry a different offset; the calendar day
	// is taken in the observer's location.
	loc := time.FixedZone("UTC+5", 5*60*60)
	target := time.Date(2026, time.March, 11, 2, 0, 0, 0, loc) // March 10, 21:00 UTC

	assert.Equal(t, 0, DaysUntil(testNow, target))
}

func TestReservationStatusLabel(t *testing.T) {
	assert.Equal(t, "Queued", ReservationQueued.Label())
	assert.Equal(t, "Ready for pickup", ReservationReady.Label())
	assert.Equal(t, "Expired", ReservationExpired.Label())
}
