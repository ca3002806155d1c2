package api

import (
	"context"
	"fmt"
	"net/http"

	"librarian/internal/cache"
	"librarian/internal/model"
)

// CreateBookPayload adds a new title to the catalog. All copies start
// available.
type CreateBookPayload struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies int    `json:"totalCopies"`
}

// UpdateBookPayload edits a title; copy counts are owned by the loan
// workflow and cannot be set directly.
type UpdateBookPayload struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Books lists the catalog page described by q.
func (c *Client) Books(ctx context.Context, q cache.Query) ([]model.Book, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/books", listQuery(q), nil)
	if err != nil {
		return nil, err
	}
	var dtos []bookDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	books := make([]model.Book, len(dtos))
	for i, dto := range dtos {
		books[i] = normalizeBook(dto)
	}
	return books, nil
}

// CreateBook returns the created record, or nil when the server answered
// with an empty body.
func (c *Client) CreateBook(ctx context.Context, payload CreateBookPayload) (*model.Book, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/books", nil, payload)
	if err != nil {
		return nil, err
	}
	var dto bookDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	book := normalizeBook(dto)
	return &book, nil
}

// UpdateBook returns the updated record, or nil when the server answered
// with an empty body.
func (c *Client) UpdateBook(ctx context.Context, bookID string, payload UpdateBookPayload) (*model.Book, error) {
	data, err := c.do(ctx, http.MethodPut, "/v1/books/"+bookID, nil, payload)
	if err != nil {
		return nil, err
	}
	var dto bookDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	book := normalizeBook(dto)
	return &book, nil
}

// DeleteBook removes a title from the catalog.
func (c *Client) DeleteBook(ctx context.Context, bookID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/books/"+bookID, nil, nil)
	return err
}
