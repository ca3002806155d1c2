package api

import (
	"context"
	"fmt"
	"net/http"
)

// Credentials is the login/register request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. The token is returned
// to the caller; storing it is the engine's job, not the transport's.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, creds)
	if err != nil {
		return "", err
	}
	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return resp.Token, nil
}

// Register creates an account and returns its first bearer token.
func (c *Client) Register(ctx context.Context, creds Credentials) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/auth/register", nil, creds)
	if err != nil {
		return "", err
	}
	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode register response: %w", err)
	}
	return resp.Token, nil
}
