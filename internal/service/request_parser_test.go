package service

import (
	"context"
	"errors"
	"testing"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/core/ports/mocks"
	"payment-intent-engine/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupParser(t *testing.T) (*RequestParserImpl, *mocks.MockAnalysisClient) {
	ctrl := gomock.NewController(t)
	analysis := mocks.NewMockAnalysisClient(ctrl)
	return NewRequestParser(analysis, newTestLogger()), analysis
}

func TestRequestParser_FullExtraction(t *testing.T) {
	parser, analysis := setupParser(t)
	analysis.EXPECT().ExtractPayment(gomock.Any(), "send 5 cro to 0xdead tomorrow").Return(&ports.PaymentExtraction{
		Amount:      "5",
		Token:       "cro",
		Recipient:   "0xdead",
		Conditions:  []string{"tomorrow", " "},
		Urgency:     "HIGH",
		Description: "Send 5 CRO",
	}, nil)

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Description: "send 5 cro to 0xdead tomorrow"})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(5).Equal(req.Amount))
	assert.Equal(t, domain.TokenCRO, req.Token)
	assert.Equal(t, "0xdead", req.Recipient)
	assert.Equal(t, []string{"tomorrow"}, req.Conditions)
	assert.Equal(t, domain.UrgencyHigh, req.Urgency)
	assert.Equal(t, "Send 5 CRO", req.Description)
	assert.Equal(t, domain.SourceAI, req.Source)
	assert.Empty(t, req.Defaulted)
}

func TestRequestParser_AnalysisFails_ExplicitFieldsWin(t *testing.T) {
	parser, analysis := setupParser(t)
	analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(nil, errors.New("upstream 503"))

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{
		Description: "pay the supplier",
		Amount:      "0.2",
		Recipient:   "0xABC",
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("0.2").Equal(req.Amount))
	assert.Equal(t, "0xABC", req.Recipient)
	assert.Equal(t, domain.PrimaryToken, req.Token)
	assert.Equal(t, domain.UrgencyMedium, req.Urgency)
	assert.Equal(t, []string{domain.ConditionImmediate}, req.Conditions)
	assert.Equal(t, "pay the supplier", req.Description)
	assert.Equal(t, domain.SourceFallback, req.Source)
	assert.ElementsMatch(t, []string{domain.FieldToken, domain.FieldUrgency, domain.FieldConditions}, req.Defaulted)
}

func TestRequestParser_AnalysisFails_AllDefaults(t *testing.T) {
	parser, analysis := setupParser(t)
	analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Description: "something vague"})
	require.NoError(t, err)

	fallback := domain.FallbackPaymentRequest("something vague")
	assert.True(t, fallback.Amount.Equal(req.Amount))
	assert.Equal(t, fallback.Token, req.Token)
	assert.Equal(t, fallback.Recipient, req.Recipient)
	assert.Equal(t, fallback.Conditions, req.Conditions)
	assert.Equal(t, domain.SourceFallback, req.Source)
	assert.Len(t, req.Defaulted, 5)
}

func TestRequestParser_ExplicitOverridesExtraction(t *testing.T) {
	parser, analysis := setupParser(t)
	analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(&ports.PaymentExtraction{
		Amount:    "9",
		Token:     "CRO",
		Recipient: "0xmodel",
		Urgency:   "low",
	}, nil)

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{
		Description: "pay",
		Amount:      "1.5",
		Token:       "usdc",
		Recipient:   "0xcaller",
		Urgency:     "high",
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("1.5").Equal(req.Amount))
	assert.Equal(t, domain.TokenUSDC, req.Token)
	assert.Equal(t, "0xcaller", req.Recipient)
	assert.Equal(t, domain.UrgencyHigh, req.Urgency)
	assert.Equal(t, domain.SourceAI, req.Source)
	assert.Equal(t, []string{domain.FieldConditions}, req.Defaulted)
}

func TestRequestParser_MalformedExtraction(t *testing.T) {
	tests := []struct {
		name       string
		extraction ports.PaymentExtraction
		defaulted  string
	}{
		{"bad amount", ports.PaymentExtraction{Amount: "lots", Token: "ETH", Recipient: "0x1", Urgency: "low", Conditions: []string{"c"}}, domain.FieldAmount},
		{"negative amount", ports.PaymentExtraction{Amount: "-1", Token: "ETH", Recipient: "0x1", Urgency: "low", Conditions: []string{"c"}}, domain.FieldAmount},
		{"unknown token", ports.PaymentExtraction{Amount: "1", Token: "DOGE", Recipient: "0x1", Urgency: "low", Conditions: []string{"c"}}, domain.FieldToken},
		{"unknown urgency", ports.PaymentExtraction{Amount: "1", Token: "ETH", Recipient: "0x1", Urgency: "asap", Conditions: []string{"c"}}, domain.FieldUrgency},
		{"usdc precision", ports.PaymentExtraction{Amount: "1.1234567", Token: "USDC", Recipient: "0x1", Urgency: "low", Conditions: []string{"c"}}, domain.FieldAmount},
		{"huge exponent", ports.PaymentExtraction{Amount: "1e99999999", Token: "ETH", Recipient: "0x1", Urgency: "low", Conditions: []string{"c"}}, domain.FieldAmount},
		{"tiny exponent", ports.PaymentExtraction{Amount: "1e-9999999", Token: "ETH", Recipient: "0x1", Urgency: "low", Conditions: []string{"c"}}, domain.FieldAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, analysis := setupParser(t)
			ext := tt.extraction
			analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(&ext, nil)

			req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Description: "pay"})
			require.NoError(t, err)
			assert.Equal(t, domain.SourceFallback, req.Source)
			assert.Equal(t, []string{tt.defaulted}, req.Defaulted)
		})
	}
}

func TestRequestParser_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.RawPaymentRequest
	}{
		{"empty", domain.RawPaymentRequest{}},
		{"blank description without amount", domain.RawPaymentRequest{Description: "  ", Recipient: "0x1"}},
		{"blank description without recipient", domain.RawPaymentRequest{Amount: "1"}},
		{"bad amount", domain.RawPaymentRequest{Description: "pay", Amount: "abc"}},
		{"zero amount", domain.RawPaymentRequest{Description: "pay", Amount: "0"}},
		{"negative amount", domain.RawPaymentRequest{Description: "pay", Amount: "-3"}},
		{"unknown token", domain.RawPaymentRequest{Description: "pay", Token: "DOGE"}},
		{"unknown urgency", domain.RawPaymentRequest{Description: "pay", Urgency: "now"}},
		{"precision", domain.RawPaymentRequest{Description: "pay", Amount: "0.0000001", Token: "USDC"}},
		{"precision against default token", domain.RawPaymentRequest{Description: "pay", Amount: "0.0000000000000000001"}},
		{"huge exponent", domain.RawPaymentRequest{Description: "pay", Amount: "1e99999999"}},
		{"tiny exponent", domain.RawPaymentRequest{Description: "pay", Amount: "1e-9999999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, analysis := setupParser(t)
			analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(nil, errors.New("down")).AnyTimes()

			_, err := parser.Parse(context.Background(), tt.raw)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
			if err != nil {
				assert.Less(t, len(err.Error()), 200)
			}
		})
	}
}

func TestRequestParser_InferredTokenConflictsWithExplicitAmount(t *testing.T) {
	parser, analysis := setupParser(t)
	analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(&ports.PaymentExtraction{
		Token:      "USDC",
		Recipient:  "0x1",
		Urgency:    "low",
		Conditions: []string{"immediate"},
	}, nil)

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Description: "pay", Amount: "0.0000001"})
	require.NoError(t, err)
	assert.Equal(t, domain.PrimaryToken, req.Token)
	assert.True(t, decimal.RequireFromString("0.0000001").Equal(req.Amount))
	assert.Equal(t, domain.SourceFallback, req.Source)
	assert.Equal(t, []string{domain.FieldToken}, req.Defaulted)
}

func TestRequestParser_InferredTokenFitsExplicitAmount(t *testing.T) {
	parser, analysis := setupParser(t)
	analysis.EXPECT().ExtractPayment(gomock.Any(), gomock.Any()).Return(&ports.PaymentExtraction{
		Token:      "USDC",
		Recipient:  "0x1",
		Urgency:    "low",
		Conditions: []string{"immediate"},
	}, nil)

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Description: "pay", Amount: "12.5"})
	require.NoError(t, err)
	assert.Equal(t, domain.TokenUSDC, req.Token)
	assert.Equal(t, domain.SourceAI, req.Source)
	assert.Empty(t, req.Defaulted)
}

func TestRequestParser_NoDescription_SkipsAnalysis(t *testing.T) {
	parser, _ := setupParser(t) // no expectations: any call fails the test

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Amount: "2", Recipient: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, req.Source)
	assert.Empty(t, req.Description)
}

func TestRequestParser_NilAnalysisClient(t *testing.T) {
	parser := NewRequestParser(nil, newTestLogger())

	req, err := parser.Parse(context.Background(), domain.RawPaymentRequest{Description: "pay"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, req.Source)
	assert.Equal(t, domain.DefaultRecipient, req.Recipient)
}
