package api

import (
	"context"
	"fmt"
	"net/http"

	"librarian/internal/cache"
	"librarian/internal/model"
)

// CreateLoanPayload borrows one copy of a book for a user.
type CreateLoanPayload struct {
	UserID string `json:"userId"`
	BookID string `json:"bookId"`
}

type prolongPayload struct {
	DaysToProlong int `json:"daysToProlong"`
}

// Loans lists the loans visible to the current principal.
func (c *Client) Loans(ctx context.Context, q cache.Query) ([]model.Loan, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/loans", listQuery(q), nil)
	if err != nil {
		return nil, err
	}
	var dtos []loanDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("decode loans: %w", err)
	}
	loans := make([]model.Loan, len(dtos))
	for i, dto := range dtos {
		loan, err := normalizeLoan(dto)
		if err != nil {
			return nil, err
		}
		loans[i] = loan
	}
	return loans, nil
}

// CreateLoan borrows a book, consuming one available copy. Returns the
// created loan, or nil when the server answered with an empty body.
func (c *Client) CreateLoan(ctx context.Context, payload CreateLoanPayload) (*model.Loan, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/loans", nil, payload)
	if err != nil {
		return nil, err
	}
	var dto loanDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	loan, err := normalizeLoan(dto)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ProlongLoan pushes a loan's due date out by days. Returns the updated
// loan, or nil when the server answered with an empty body.
func (c *Client) ProlongLoan(ctx context.Context, loanID string, days int) (*model.Loan, error) {
	data, err := c.do(ctx, http.MethodPut, "/v1/loans/"+loanID, nil, prolongPayload{DaysToProlong: days})
	if err != nil {
		return nil, err
	}
	var dto loanDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	loan, err := normalizeLoan(dto)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// CancelLoan returns the copy: the loan record is removed and the book's
// available count goes back up server-side.
func (c *Client) CancelLoan(ctx context.Context, loanID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/loans/"+loanID, nil, nil)
	return err
}
