// Package client is a typed HTTP client for the payment intent API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"payment-intent-engine/internal/adapter/http/dto"
	"payment-intent-engine/internal/core/domain"
)

const maxResponseBytes = 4 << 20

// HTTPClient is the subset of *http.Client the client uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Code, e.Message)
}

// Client talks to a running engine.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

type list[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// do sends a request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.ErrorCode, Message: env.Message, RequestID: env.RequestID}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Login exchanges operator credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*dto.LoginResponse, error) {
	var out dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil,
		dto.LoginRequest{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIntent submits a payment request.
func (c *Client) CreateIntent(ctx context.Context, req dto.CreateIntentRequest) (*dto.IntentResponse, error) {
	var out dto.IntentResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/intents", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecuteIntent approves and settles an intent. A positive timeout is sent
// as timeout_ms; the server may cap it.
func (c *Client) ExecuteIntent(ctx context.Context, id string, timeout time.Duration) (*dto.IntentResponse, error) {
	var query url.Values
	if timeout > 0 {
		query = url.Values{"timeout_ms": {strconv.FormatInt(timeout.Milliseconds(), 10)}}
	}
	var out dto.IntentResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/intents/"+url.PathEscape(id)+"/execute", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetIntent fetches one intent.
func (c *Client) GetIntent(ctx context.Context, id string) (*dto.IntentResponse, error) {
	var out dto.IntentResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/intents/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListIntents returns the most recent intents. limit <= 0 uses the server default.
func (c *Client) ListIntents(ctx context.Context, limit int) ([]dto.IntentResponse, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out list[dto.IntentResponse]
	if err := c.do(ctx, http.MethodGet, "/api/v1/intents", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// IntentEvents returns the audit trail of one intent.
func (c *Client) IntentEvents(ctx context.Context, id string) ([]domain.AuditRecord, error) {
	var out list[domain.AuditRecord]
	if err := c.do(ctx, http.MethodGet, "/api/v1/intents/"+url.PathEscape(id)+"/events", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Analytics returns store-wide statistics.
func (c *Client) Analytics(ctx context.Context) (*dto.AnalyticsResponse, error) {
	var out dto.AnalyticsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/analytics", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Market returns the current market snapshot.
func (c *Client) Market(ctx context.Context) (*dto.MarketResponse, error) {
	var out dto.MarketResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/market", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
