package api

// client.go holds the HTTP plumbing shared by every endpoint method:
// request building, bearer auth, error mapping and response decoding.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"librarian/internal/cache"
	"librarian/internal/token"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 10 * time.Second

// Client talks to the library service's v1 REST API. Every method takes
// a context and honors its cancellation; a canceled call returns an
// error for which IsCanceled is true and has no other effect.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *token.Store
}

// New returns a client rooted at apiURL. The bearer token is read from
// the store on every request, so a login in the middle of a session is
// picked up immediately.
func New(apiURL string, tokens *token.Store) *Client {
	return NewWithTimeout(apiURL, tokens, defaultTimeout)
}

// NewWithTimeout returns a client whose requests give up after timeout.
// Zero or negative means the default.
func NewWithTimeout(apiURL string, tokens *token.Store, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// listQuery renders normalized list parameters into the page/size/
// sortBy/sortOrder query the API accepts.
func listQuery(q cache.Query) url.Values {
	values := url.Values{}
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("size", strconv.Itoa(q.Size))
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
		values.Set("sortOrder", q.SortOrder)
	}
	return values
}

// do performs one request. A non-nil body is sent as JSON. The response
// body is returned raw so callers can decide how to decode it; status
// codes >= 400 become *Error with the server's message extracted.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Read(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Wrapped so IsCanceled still sees context.Canceled underneath.
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{StatusCode: resp.StatusCode, Message: extractMessage(data)}
	}
	return data, nil
}

// extractMessage pulls the server's error text out of a failure body,
// which is either {"message": "..."} or plain text.
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if len(body) > 0 && body[0] != '{' && body[0] != '[' {
		return string(body)
	}
	return ""
}

// decodeEntity decodes a write response into out. An empty or
// non-object body means the server returned no entity, which is not an
// error: the caller falls back to reloading instead of trusting a
// synthetic value.
func decodeEntity(data []byte, out any) (bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false, nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
