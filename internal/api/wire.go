package api

// wire.go maps between the JSON the server speaks and the model types
// the rest of the client works with. Dates cross the wire as strings
// and are normalized to time.Time here, at the ingestion boundary;
// nothing past this package ever sees a date string.

import (
	"fmt"
	"time"

	"librarian/internal/model"
)

// Wire date layouts, most specific first. The server usually emits
// RFC3339, but timezone-less and date-only values show up too.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseWireTime normalizes a wire date string to a timestamp.
func ParseWireTime(value string) (time.Time, error) {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// FormatWireTime renders a timestamp back into the wire format, so a
// date that round-trips through the client names the same instant.
func FormatWireTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

type userDTO struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Role     *string `json:"role,omitempty"`
}

type bookDTO struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
}

type loanDTO struct {
	ID         string  `json:"id"`
	BorrowDate string  `json:"borrowDate"`
	ReturnDate string  `json:"returnDate"`
	User       userDTO `json:"user"`
	Book       bookDTO `json:"book"`
}

type reservationDTO struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"createdAt"`
	ExpiresAt string  `json:"expiresAt"`
	Status    string  `json:"status"`
	User      userDTO `json:"user"`
	Book      bookDTO `json:"book"`
}

// normalizeUser defaults a missing role to USER, matching how the
// server omits the role field for plain members.
func normalizeUser(dto userDTO) model.User {
	role := model.UserRoleUser
	if dto.Role != nil && *dto.Role != "" {
		role = model.UserRole(*dto.Role)
	}
	return model.User{ID: dto.ID, Username: dto.Username, Role: role}
}

func normalizeBook(dto bookDTO) model.Book {
	return model.Book(dto)
}

func normalizeLoan(dto loanDTO) (model.Loan, error) {
	borrowed, err := ParseWireTime(dto.BorrowDate)
	if err != nil {
		return model.Loan{}, fmt.Errorf("loan %s borrowDate: %w", dto.ID, err)
	}
	due, err := ParseWireTime(dto.ReturnDate)
	if err != nil {
		return model.Loan{}, fmt.Errorf("loan %s returnDate: %w", dto.ID, err)
	}
	return model.Loan{
		ID:         dto.ID,
		BorrowDate: borrowed,
		ReturnDate: due,
		User:       normalizeUser(dto.User),
		Book:       normalizeBook(dto.Book),
	}, nil
}

func normalizeReservation(dto reservationDTO) (model.Reservation, error) {
	created, err := ParseWireTime(dto.CreatedAt)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %s createdAt: %w", dto.ID, err)
	}
	expires, err := ParseWireTime(dto.ExpiresAt)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %s expiresAt: %w", dto.ID, err)
	}
	return model.Reservation{
		ID:        dto.ID,
		CreatedAt: created,
		ExpiresAt: expires,
		Status:    model.ReservationStatus(dto.Status),
		User:      normalizeUser(dto.User),
		Book:      normalizeBook(dto.Book),
	}, nil
}
