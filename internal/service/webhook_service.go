package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"

	"github.com/rs/zerolog"
)

// DefaultWebhookRetryIntervals are the waits between delivery attempts.
var DefaultWebhookRetryIntervals = []time.Duration{
	15 * time.Second,
	time.Minute,
	5 * time.Minute,
}

// WebhookPayload is the JSON body POSTed to the callback URL.
type WebhookPayload struct {
	EventType string             `json:"event_type"`
	Data      WebhookPayloadData `json:"data"`
	Signature string             `json:"signature"`
}

// WebhookPayloadData holds the intent outcome.
type WebhookPayloadData struct {
	IntentID            string `json:"intent_id"`
	Status              string `json:"status"`
	Amount              string `json:"amount"`
	Token               string `json:"token"`
	Recipient           string `json:"recipient"`
	SettlementReference string `json:"settlement_reference,omitempty"`
	ErrorCode           string `json:"error_code,omitempty"`
	Reason              string `json:"reason,omitempty"`
	Timestamp           int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier delivers terminal intent events to a configured URL.
// It implements ports.IntentNotifier.
type WebhookNotifier struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	retries    []time.Duration
	wg         sync.WaitGroup
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. nil retries uses the defaults.
func NewWebhookNotifier(
	url, secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	retries []time.Duration,
	log zerolog.Logger,
) *WebhookNotifier {
	if retries == nil {
		retries = DefaultWebhookRetryIntervals
	}
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		retries:    retries,
		log:        log,
	}
}

// Notify signs terminal events and delivers them asynchronously with retries.
func (s *WebhookNotifier) Notify(_ context.Context, event domain.IntentEvent) {
	if s.url == "" || !event.Type.IsTerminal() {
		return
	}

	intent := event.Intent
	data := WebhookPayloadData{
		IntentID:            intent.ID.String(),
		Status:              string(intent.Status),
		Amount:              intent.Request.Amount.String(),
		Token:               string(intent.Request.Token),
		Recipient:           intent.Request.Recipient,
		SettlementReference: intent.SettlementReference,
		Timestamp:           event.OccurredAt.Unix(),
	}
	if intent.Error != nil {
		data.ErrorCode = intent.Error.Code
		data.Reason = intent.Error.Message
	}

	dataBytes, _ := json.Marshal(data)
	payload := WebhookPayload{
		EventType: string(event.Type),
		Data:      data,
		Signature: s.sigSvc.Sign(s.secret, string(dataBytes)),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliverWithRetries(payload, data.IntentID)
	}()
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (s *WebhookNotifier) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *WebhookNotifier) deliverWithRetries(payload WebhookPayload, intentID string) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("intent_id", intentID).Msg("webhook: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(s.retries); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retries[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payloadBytes))
		if err != nil {
			s.log.Error().Err(err).Str("intent_id", intentID).Msg("webhook: failed to create request")
			metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Event", payload.EventType)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("intent_id", intentID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
			s.log.Info().Str("intent_id", intentID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered successfully")
			return
		}

		s.log.Warn().Str("intent_id", intentID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("exhausted").Inc()
	s.log.Error().Str("intent_id", intentID).Msg("webhook: all retry attempts exhausted")
}
