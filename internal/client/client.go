// Package client is a small typed HTTP client for the authentication and
// compliance API, used by the smoke binary and suitable for other Go
// services inside the platform.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one API instance. The zero value is not usable; use New.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token for authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) { c.token = token }

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: %d %s (request_id=%s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// LoginResult is the outcome of Login: either a session token or a pending
// multi-factor challenge.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	MFA       *struct {
		Required  bool      `json:"required"`
		Challenge string    `json:"challenge"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"mfa"`
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteMFA redeems a challenge token with a TOTP code.
func (c *Client) CompleteMFA(ctx context.Context, challenge, code string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/v1/auth/mfa", map[string]string{
		"challenge": challenge,
		"code":      code,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}

// Check asks whether the current session may perform action on resource.
func (c *Client) Check(ctx context.Context, resource, action string) (bool, error) {
	var out struct {
		Granted bool `json:"granted"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/authz/check", map[string]string{
		"resource": resource,
		"action":   action,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Granted, nil
}

// EventInput is the payload for RecordEvent.
type EventInput struct {
	Type         string         `json:"type"`
	Action       string         `json:"action"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	Success      *bool          `json:"success,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RecordEvent submits an application audit event.
func (c *Client) RecordEvent(ctx context.Context, e EventInput) error {
	return c.do(ctx, http.MethodPost, "/v1/compliance/events", e, nil)
}

// Violation mirrors the service's violation resource.
type Violation struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
	ResourceID  string    `json:"resource_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Remediation string    `json:"remediation"`
	Status      string    `json:"status"`
}

// ListViolations lists violations, optionally filtered by actor and status.
func (c *Client) ListViolations(ctx context.Context, actor, status string, limit int) ([]Violation, error) {
	path := "/v1/compliance/violations?"
	params := make([]string, 0, 3)
	if actor != "" {
		params = append(params, "actor="+actor)
	}
	if status != "" {
		params = append(params, "status="+status)
	}
	if limit > 0 {
		params = append(params, fmt.Sprintf("limit=%d", limit))
	}
	path += strings.Join(params, "&")

	var out struct {
		Items []Violation `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error, RequestID: apiErr.RequestID}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
