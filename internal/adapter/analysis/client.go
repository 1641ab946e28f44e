// Package analysis talks to an OpenAI-compatible chat completions API to
// extract payment fields from free text and to score payment risk.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-intent-engine/internal/circuitbreaker"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/traces"
	"payment-intent-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	breakerKey      = "analysis"
	maxResponseSize = 1 << 20
)

// ErrEmptyCompletion is returned when the model answers with no content.
var ErrEmptyCompletion = errors.New("analysis: empty completion")

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the analysis client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client implements ports.AnalysisClient.
type Client struct {
	cfg     Config
	http    HTTPClient
	breaker *circuitbreaker.Breaker
	log     zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

// New creates an analysis client.
func New(cfg Config, log zerolog.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// extractionWire accepts amount as either a JSON number or a string.
type extractionWire struct {
	Amount      json.RawMessage `json:"amount"`
	Token       string          `json:"token"`
	Recipient   string          `json:"recipient"`
	Conditions  []string        `json:"conditions"`
	Urgency     string          `json:"urgency"`
	Description string          `json:"description"`
}

type riskWire struct {
	Score          json.RawMessage `json:"riskScore"`
	Factors        []string        `json:"factors"`
	Recommendation string          `json:"recommendation"`
	Reasoning      string          `json:"reasoning"`
}

// ExtractPayment asks the model to read payment fields out of text.
func (c *Client) ExtractPayment(ctx context.Context, text string) (*ports.PaymentExtraction, error) {
	content, err := c.complete(ctx, "extract", extractSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	var wire extractionWire
	if err := decodeJSONContent(content, &wire); err != nil {
		return nil, apperror.ErrCollaborator("analysis", err)
	}

	return &ports.PaymentExtraction{
		Amount:      rawScalar(wire.Amount),
		Token:       strings.TrimSpace(wire.Token),
		Recipient:   strings.TrimSpace(wire.Recipient),
		Conditions:  wire.Conditions,
		Urgency:     strings.TrimSpace(wire.Urgency),
		Description: strings.TrimSpace(wire.Description),
	}, nil
}

// AssessRisk asks the model for a risk verdict on request.
func (c *Client) AssessRisk(ctx context.Context, request domain.PaymentRequest) (*ports.RiskAnalysis, error) {
	content, err := c.complete(ctx, "risk", riskSystemPrompt, riskUserPrompt(request))
	if err != nil {
		return nil, err
	}

	var wire riskWire
	if err := decodeJSONContent(content, &wire); err != nil {
		return nil, apperror.ErrCollaborator("analysis", err)
	}
	score, err := parseScore(rawScalar(wire.Score))
	if err != nil {
		return nil, apperror.ErrCollaborator("analysis", fmt.Errorf("risk score %q: %w", string(wire.Score), err))
	}

	return &ports.RiskAnalysis{
		Score:          score,
		Factors:        wire.Factors,
		Recommendation: strings.TrimSpace(wire.Recommendation),
		Reasoning:      wire.Reasoning,
	}, nil
}

// parseScore reads a model score and bounds it to the risk range before the
// integer conversion, so huge or infinite values cannot overflow.
func parseScore(raw string) (int, error) {
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) {
		return 0, errors.New("not a number")
	}
	score = math.Max(domain.MinRiskScore, math.Min(domain.MaxRiskScore, score))
	return int(math.Round(score)), nil
}

// complete sends one chat completion and returns the assistant content.
func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	ctx, span := traces.StartSpan(ctx, "analysis."+op)
	defer span.End()

	if c.breaker != nil && !c.breaker.Allow(breakerKey) {
		err := apperror.ErrCollaborator("analysis", circuitbreaker.ErrOpen)
		traces.RecordError(span, err)
		return "", err
	}

	content, err := c.do(ctx, system, user)
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure(breakerKey)
		} else {
			c.breaker.RecordSuccess(breakerKey)
		}
	}
	if err != nil {
		traces.RecordError(span, err)
		c.log.Warn().Err(err).Str("op", op).Msg("analysis request failed")
		return "", apperror.ErrCollaborator("analysis", err)
	}
	return content, nil
}

func (c *Client) do(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		MaxTokens:      512,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return parsed.Choices[0].Message.Content, nil
}

// decodeJSONContent decodes a JSON object from model output, tolerating a
// surrounding markdown code fence.
func decodeJSONContent(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in completion")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	return nil
}

// rawScalar renders a JSON number or string as plain text.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	// anything else is left for the parser to reject
	return string(raw)
}
