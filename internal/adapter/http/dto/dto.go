package dto

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Amount accepts a JSON string or number and keeps its literal text, so
// no precision is lost before the amount is parsed as a decimal.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("amount must be a string or number")
		}
		*a = Amount(n.String())
	}
	return nil
}

// CreateIntentRequest is the request body for creating a payment intent.
// Explicit fields override whatever is read from the description.
type CreateIntentRequest struct {
	Description string `json:"description" binding:"max=2000,no_control"`
	Amount      Amount `json:"amount,omitempty" binding:"max=64"`
	Token       string `json:"token,omitempty" binding:"omitempty,max=16,token_symbol"`
	Recipient   string `json:"recipient,omitempty" binding:"max=128,no_control"`
	Urgency     string `json:"urgency,omitempty" binding:"max=16"`
}

// ToRaw converts the body to the engine's input.
func (r CreateIntentRequest) ToRaw() domain.RawPaymentRequest {
	return domain.RawPaymentRequest{
		Description: r.Description,
		Amount:      string(r.Amount),
		Token:       r.Token,
		Recipient:   r.Recipient,
		Urgency:     r.Urgency,
	}
}

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TransactionResponse renders integer amounts as decimal strings and the
// payload as 0x-prefixed hex.
type TransactionResponse struct {
	Destination     string                `json:"destination"`
	Token           domain.Token          `json:"token"`
	ValueMinorUnits string                `json:"value_minor_units"`
	Payload         string                `json:"payload"`
	GasLimit        uint64                `json:"gas_limit"`
	FeeRate         string                `json:"fee_rate"`
	EstimatedFee    string                `json:"estimated_fee"`
	FeeSource       domain.Source         `json:"fee_source"`
	RiskMitigation  domain.RiskMitigation `json:"risk_mitigation"`
}

// IntentResponse is the API view of a payment intent.
type IntentResponse struct {
	ID                  string                `json:"id"`
	Status              domain.IntentStatus   `json:"status"`
	Request             domain.PaymentRequest `json:"request"`
	RiskAssessment      domain.RiskAssessment `json:"risk_assessment"`
	MarketAnalysis      domain.MarketAnalysis `json:"market_analysis"`
	Transaction         TransactionResponse   `json:"transaction"`
	CreatedAt           time.Time             `json:"created_at"`
	ExecutionStartedAt  *time.Time            `json:"execution_started_at,omitempty"`
	CompletedAt         *time.Time            `json:"completed_at,omitempty"`
	FailedAt            *time.Time            `json:"failed_at,omitempty"`
	SettlementReference string                `json:"settlement_reference,omitempty"`
	GasUsed             *uint64               `json:"gas_used,omitempty"`
	Error               *domain.IntentError   `json:"error,omitempty"`
}

// AnalyticsResponse is the API view of store analytics.
type AnalyticsResponse struct {
	Total                int64                            `json:"total"`
	Completed            int64                            `json:"completed"`
	Pending              int64                            `json:"pending"`
	Executing            int64                            `json:"executing"`
	Failed               int64                            `json:"failed"`
	SuccessRate          float64                          `json:"success_rate"`
	AverageRiskScore     float64                          `json:"average_risk_score"`
	TotalCompletedAmount map[domain.Token]decimal.Decimal `json:"total_completed_amount"`
	LatestMarketSnapshot *domain.MarketSnapshot           `json:"latest_market_snapshot,omitempty"`
	Recent               []IntentResponse                 `json:"recent"`
}

// MarketResponse is the current market snapshot.
type MarketResponse struct {
	domain.MarketSnapshot
	Live bool `json:"live"` // false until the feed has sampled
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewTransactionResponse converts transaction data.
func NewTransactionResponse(tx domain.TransactionData) TransactionResponse {
	return TransactionResponse{
		Destination:     tx.Destination,
		Token:           tx.Token,
		ValueMinorUnits: bigString(tx.ValueMinorUnits),
		Payload:         "0x" + hex.EncodeToString(tx.Payload),
		GasLimit:        tx.GasLimit,
		FeeRate:         bigString(tx.FeeRate),
		EstimatedFee:    bigString(tx.EstimatedFee),
		FeeSource:       tx.FeeSource,
		RiskMitigation:  tx.RiskMitigation,
	}
}

// NewIntentResponse converts an intent.
func NewIntentResponse(p *domain.PaymentIntent) IntentResponse {
	return IntentResponse{
		ID:                  p.ID.String(),
		Status:              p.Status,
		Request:             p.Request,
		RiskAssessment:      p.Risk,
		MarketAnalysis:      p.Market,
		Transaction:         NewTransactionResponse(p.Transaction),
		CreatedAt:           p.CreatedAt,
		ExecutionStartedAt:  p.ExecutionStartedAt,
		CompletedAt:         p.CompletedAt,
		FailedAt:            p.FailedAt,
		SettlementReference: p.SettlementReference,
		GasUsed:             p.GasUsed,
		Error:               p.Error,
	}
}

// NewIntentList converts a slice of intents; the result is never nil.
func NewIntentList(intents []domain.PaymentIntent) []IntentResponse {
	out := make([]IntentResponse, 0, len(intents))
	for i := range intents {
		out = append(out, NewIntentResponse(&intents[i]))
	}
	return out
}

// NewAnalyticsResponse converts analytics.
func NewAnalyticsResponse(a *domain.Analytics) AnalyticsResponse {
	return AnalyticsResponse{
		Total:                a.Total,
		Completed:            a.Completed,
		Pending:              a.Pending,
		Executing:            a.Executing,
		Failed:               a.Failed,
		SuccessRate:          a.SuccessRate,
		AverageRiskScore:     a.AverageRiskScore,
		TotalCompletedAmount: a.TotalCompletedAmount,
		LatestMarketSnapshot: a.LatestMarketSnapshot,
		Recent:               NewIntentList(a.Recent),
	}
}
