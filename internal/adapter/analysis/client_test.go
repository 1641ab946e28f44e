package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"payment-intent-engine/internal/circuitbreaker"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) string {
	b, _ := json.Marshal(chatResponse{
		ID:      "chatcmpl-1",
		Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
	})
	return string(b)
}

func newTestServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
		}
		if assert.NotNil(t, req.ResponseFormat) {
			assert.Equal(t, "json_object", req.ResponseFormat.Type)
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string, opts ...Option) *Client {
	return New(Config{BaseURL: url + "/", APIKey: "sk-test", Model: "deepseek-chat", Timeout: 2 * time.Second}, zerolog.Nop(), opts...)
}

func TestExtractPayment(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantAmount string
	}{
		{"string amount", `{"amount":"0.5","token":"ETH","recipient":"0xABC","conditions":["immediate"],"urgency":"high","description":"rent"}`, "0.5"},
		{"numeric amount", `{"amount":0.5,"token":"ETH","recipient":"0xABC","conditions":["immediate"],"urgency":"high","description":"rent"}`, "0.5"},
		{"fenced output", "```json\n{\"amount\":\"0.5\",\"token\":\"ETH\",\"recipient\":\"0xABC\",\"urgency\":\"high\",\"description\":\"rent\"}\n```", "0.5"},
		{"missing amount", `{"token":"ETH","recipient":"0xABC","urgency":"high","description":"rent"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, completion(tt.content), nil)
			c := newTestClient(srv.URL)

			got, err := c.ExtractPayment(context.Background(), "pay 0.5 ETH to 0xABC for rent")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, got.Amount)
			assert.Equal(t, "ETH", got.Token)
			assert.Equal(t, "0xABC", got.Recipient)
			assert.Equal(t, "high", got.Urgency)
			assert.Equal(t, "rent", got.Description)
		})
	}
}

func TestExtractPayment_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`},
		{"unauthorized", http.StatusUnauthorized, `{}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"not json content", http.StatusOK, completion("I cannot help with that")},
		{"broken json content", http.StatusOK, completion(`{"amount": "0.5",`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			c := newTestClient(srv.URL)

			got, err := c.ExtractPayment(context.Background(), "pay someone")
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, apperror.IsCode(err, apperror.CodeCollaborator))
		})
	}
}

func TestAssessRisk(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		completion(`{"riskScore": 42.6, "factors": ["new_recipient"], "recommendation": "hold", "reasoning": "unknown address"}`), nil)
	c := newTestClient(srv.URL)

	got, err := c.AssessRisk(context.Background(), domain.PaymentRequest{
		Amount:    decimal.RequireFromString("1.5"),
		Token:     domain.TokenETH,
		Recipient: "0xABC",
		Urgency:   domain.UrgencyMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, 43, got.Score)
	assert.Equal(t, []string{"new_recipient"}, got.Factors)
	assert.Equal(t, "hold", got.Recommendation)
	assert.Equal(t, "unknown address", got.Reasoning)
}

func TestAssessRisk_StringScore(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, completion(`{"riskScore":"75","factors":[],"recommendation":"reject"}`), nil)

	got, err := newTestClient(srv.URL).AssessRisk(context.Background(), domain.PaymentRequest{Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, 75, got.Score)
}

func TestAssessRisk_BadScore(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, completion(`{"riskScore":"very high","recommendation":"reject"}`), nil)

	_, err := newTestClient(srv.URL).AssessRisk(context.Background(), domain.PaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.True(t, apperror.IsCode(err, apperror.CodeCollaborator))
}

func TestAssessRisk_ExtremeScores(t *testing.T) {
	tests := []struct {
		name  string
		score string
		want  int
	}{
		{"above range", `150`, 100},
		{"huge", `1e300`, 100},
		{"huge negative", `-1e300`, 0},
		{"infinity string", `"Infinity"`, 100},
		{"negative infinity string", `"-Inf"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK,
				completion(`{"riskScore":`+tt.score+`,"factors":[],"recommendation":"reject"}`), nil)

			got, err := newTestClient(srv.URL).AssessRisk(context.Background(), domain.PaymentRequest{Amount: decimal.NewFromInt(1)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestAssessRisk_NaNScore(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, completion(`{"riskScore":"NaN","recommendation":"approve"}`), nil)

	_, err := newTestClient(srv.URL).AssessRisk(context.Background(), domain.PaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.True(t, apperror.IsCode(err, apperror.CodeCollaborator))
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := newTestServer(t, http.StatusBadGateway, `{}`, &calls)
	breaker := circuitbreaker.New(2, time.Minute)
	c := newTestClient(srv.URL, WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := c.ExtractPayment(context.Background(), "pay")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State(breakerKey))

	_, err := c.AssessRisk(context.Background(), domain.PaymentRequest{Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, completion(`{}`), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).ExtractPayment(ctx, "pay")
	assert.True(t, apperror.IsCode(err, apperror.CodeCollaborator))
}

func TestRawScalar(t *testing.T) {
	assert.Equal(t, "", rawScalar(nil))
	assert.Equal(t, "", rawScalar(json.RawMessage("null")))
	assert.Equal(t, "1.25", rawScalar(json.RawMessage(`"1.25 "`)))
	assert.Equal(t, "100", rawScalar(json.RawMessage(`100`)))
	assert.Equal(t, "true", rawScalar(json.RawMessage(`true`)))
}
