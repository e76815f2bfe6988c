// Package backend holds the HTTP clients for the two upstream services and
// normalizes their JSON into domain records.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound matches an *APIError with status 404.
	ErrNotFound = errors.New("backend: not found")
	// ErrConflict matches an *APIError with status 409.
	ErrConflict = errors.New("backend: conflict")
)

// APIError is a non-2xx response. Message is the server's error, message,
// title or detail field when the body is JSON, else the raw body text.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match the status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// UserError is a failure whose display text is already decided. Status,
// when set, is the HTTP status the storefront answers with.
type UserError struct {
	Status  int
	Message string
	Err     error
}

// Failf builds a UserError around err. err may be nil.
func Failf(status int, err error, format string, args ...any) *UserError {
	return &UserError{Status: status, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }

// UserMessage picks the text to show for a failed call: a UserError's
// message, else the server's own message, else fallback.
func UserMessage(err error, fallback string) string {
	var userErr *UserError
	if errors.As(err, &userErr) && userErr.Message != "" {
		return userErr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf picks the status the storefront answers with for err: a
// UserError's own status, an upstream 4xx as-is, anything else 502.
func StatusOf(err error) int {
	var userErr *UserError
	if errors.As(err, &userErr) && userErr.Status != 0 {
		return userErr.Status
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}

func newAPIError(status int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	e := &APIError{StatusCode: status, Body: text, Message: text}

	var fields struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Title   string `json:"title"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return e
	}
	if s, ok := fields.Error.(string); ok && s != "" {
		e.Message = s
		return e
	}
	for _, s := range []string{fields.Message, fields.Title, fields.Detail} {
		if s != "" {
			e.Message = s
			return e
		}
	}
	return e
}

// client is the transport shared by both service clients.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) client {
	return client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// raw issues a request and returns the body of a 2xx response. in, when
// non-nil, is sent as JSON. token, when non-empty, is sent as a bearer token.
func (c client) raw(ctx context.Context, method, path, token string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// do is raw plus JSON decoding of the response into out. An empty body
// leaves out untouched.
func (c client) do(ctx context.Context, method, path, token string, in, out any) error {
	data, err := c.raw(ctx, method, path, token, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}
