package model

import "time"

// ReservationStatus is always the server-supplied enum value. The client
// never invents or derives a status locally, it only mirrors the server.
type ReservationStatus string

const (
	ReservationQueued  ReservationStatus = "QUEUED"
	ReservationReady   ReservationStatus = "READY"
	ReservationExpired ReservationStatus = "EXPIRED"
)

// Label returns the display label for a reservation status.
func (s ReservationStatus) Label() string {
	switch s {
	case ReservationQueued:
		return "Queued"
	case ReservationReady:
		return "Ready for pickup"
	case ReservationExpired:
		return "Expired"
	default:
		return string(s)
	}
}

// Reservation is a claim on a book, typically placed while no copies are
// available. Lifecycle: QUEUED -> READY (server-driven), READY -> loan
// (which deletes the reservation), any -> EXPIRED -> removed by cleanup.
type Reservation struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Status    ReservationStatus `json:"status"`
	User      User              `json:"user"`
	Book      Book              `json:"book"`
}
