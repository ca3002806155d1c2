package api

import (
	"context"
	"fmt"
	"net/http"

	"librarian/internal/cache"
	"librarian/internal/model"
)

// CreateUserPayload creates a staff-managed account. Admins cannot be
// created through this client.
type CreateUserPayload struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	Role     model.UserRole `json:"role"`
}

// UpdateUserPayload renames a user and resets the password. Role is
// fixed at creation and not editable here.
type UpdateUserPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Me returns the account the current token belongs to.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/users/me", nil, nil)
	if err != nil {
		return model.User{}, err
	}
	var dto userDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}
	return normalizeUser(dto), nil
}

// Users lists accounts, staff only.
func (c *Client) Users(ctx context.Context, q cache.Query) ([]model.User, error) {
	data, err := c.do(ctx, http.MethodGet, "/v1/users", listQuery(q), nil)
	if err != nil {
		return nil, err
	}
	var dtos []userDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]model.User, len(dtos))
	for i, dto := range dtos {
		users[i] = normalizeUser(dto)
	}
	return users, nil
}

// CreateUser returns the created account, or nil on an empty response
// body.
func (c *Client) CreateUser(ctx context.Context, payload CreateUserPayload) (*model.User, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/users", nil, payload)
	if err != nil {
		return nil, err
	}
	var dto userDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	user := normalizeUser(dto)
	return &user, nil
}

// UpdateUser returns the updated account, or nil on an empty response
// body.
func (c *Client) UpdateUser(ctx context.Context, userID string, payload UpdateUserPayload) (*model.User, error) {
	data, err := c.do(ctx, http.MethodPut, "/v1/users/"+userID, nil, payload)
	if err != nil {
		return nil, err
	}
	var dto userDTO
	ok, err := decodeEntity(data, &dto)
	if err != nil || !ok {
		return nil, err
	}
	user := normalizeUser(dto)
	return &user, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/users/"+userID, nil, nil)
	return err
}
