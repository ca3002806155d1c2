package model

import (
	"fmt"
	"math"
	"time"
)

// DueKind classifies how close a loan is to its due date.
type DueKind int

const (
	DueOverdue DueKind = iota
	DueToday
	DueSoon
	DueOnTrack
)

// DueSoonThreshold is the number of days left under which a loan counts
// as "due soon" instead of "on track".
const DueSoonThreshold = 3

// DueStatus is a derived value, recomputed on every observation because
// it depends on wall-clock time. It is never cached or persisted.
type DueStatus struct {
	Kind DueKind
	// Days is the number of days overdue for DueOverdue, or the number
	// of days left for DueSoon/DueOnTrack. Zero for DueToday.
	Days int
}

// DaysUntil returns the calendar-day distance from now to target:
// midnight-to-midnight difference, ceiling-rounded, in now's location.
// Negative means target is in the past.
func DaysUntil(now, target time.Time) int {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	t := target.In(now.Location())
	startOfTarget := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	diff := startOfTarget.Sub(startOfToday)
	return int(math.Ceil(diff.Hours() / 24))
}

// DueStatusAt derives the due status of a loan with the given return
// date as observed at now.
func DueStatusAt(now, returnDate time.Time) DueStatus {
	daysLeft := DaysUntil(now, returnDate)
	switch {
	case daysLeft < 0:
		return DueStatus{Kind: DueOverdue, Days: -daysLeft}
	case daysLeft == 0:
		return DueStatus{Kind: DueToday}
	case daysLeft <= DueSoonThreshold:
		return DueStatus{Kind: DueSoon, Days: daysLeft}
	default:
		return DueStatus{Kind: DueOnTrack, Days: daysLeft}
	}
}

// DueStatusNow derives the due status against the current local time.
func DueStatusNow(returnDate time.Time) DueStatus {
	return DueStatusAt(time.Now(), returnDate)
}

// Label renders the status the way the dashboard shows it.
func (d DueStatus) Label() string {
	switch d.Kind {
	case DueOverdue:
		return fmt.Sprintf("Overdue by %d %s", d.Days, pluralDay(d.Days))
	case DueToday:
		return "Due today"
	default:
		return fmt.Sprintf("Due in %d %s", d.Days, pluralDay(d.Days))
	}
}

func pluralDay(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
