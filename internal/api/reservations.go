package api

import (
	"context"
	"fmt"
	"net/http"

	"librarian/internal/cache"
	"librarian/internal/model"
)

// CreateReservationPayload places a claim on a book for a user.
type CreateReservationPayload struct {
	UserID string `json:"userId"`
	BookID string `json:"bookId"`
}

// Reservations lists reservations visible to the current principal.
func (c *Client) Reservations(ctx context.Context, q cache.Query) ([]model.Reservation, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/reservations", listQuery(q), nil)
	if err != nil {
		return nil, err
	}
	var dtos []reservationDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("decode reservations: %w", err)
	}
	reservations := make([]model.Reservation, len(dtos))
	for i, dto := range dtos {
		reservation, err := normalizeReservation(dto)
		if err != nil {
			return nil, err
		}
		reservations[i] = reservation
	}
	return reservations, nil
}

// Reservation fetches a single reservation by id.
func (c *Client) Reservation(ctx context.Context, reservationID string) (model.Reservation, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/reservations/"+reservationID, nil, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	var dto reservationDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return model.Reservation{}, fmt.Errorf("decode reservation: %w", err)
	}
	return normalizeReservation(dto)
}

// CreateReservation returns the created reservation, or nil on an empty
// response body. The status is whatever the server assigned; the client
// never makes one up.
func (c *Client) CreateReservation(ctx context.Context, payload CreateReservationPayload) (*model.Reservation, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/reservations", nil, payload)
	if err != nil {
		return nil, err
	}
	var dto reservationDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	reservation, err := normalizeReservation(dto)
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// CancelReservation withdraws a claim.
func (c *Client) CancelReservation(ctx context.Context, reservationID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/reservations/"+reservationID, nil, nil)
	return err
}

// CleanupExpiredReservations deletes every reservation already marked
// EXPIRED.
func (c *Client) CleanupExpiredReservations(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/reservations/expired", nil, nil)
	return err
}

// ExpireReservations asks the server to sweep overdue queued
// reservations into EXPIRED, returning how many it updated.
func (c *Client) ExpireReservations(ctx context.Context) (int, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/reservations/expire", nil, nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Updated int `json:"updated"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("decode expire response: %w", err)
	}
	return resp.Updated, nil
}
