package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Urgency is the caller's stated priority.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency resolves a case-insensitive urgency level.
func ParseUrgency(s string) (Urgency, bool) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return u, true
	default:
		return "", false
	}
}

// Source records which path produced a value.
type Source string

const (
	SourceAI        Source = "ai"
	SourceFallback  Source = "fallback"
	SourceRPC       Source = "rpc"
	SourceSimulated Source = "simulated"
)

// Condition tags.
const (
	ConditionImmediate    = "immediate"
	ConditionNetworkClear = "execute_when_network_clear"
)

// FeeBelowCondition returns the wait_fee_below_<n> tag for a gwei threshold.
func FeeBelowCondition(thresholdGwei int64) string {
	return "wait_fee_below_" + strconv.FormatInt(thresholdGwei, 10)
}

// Fallback values used when the analysis collaborator cannot supply a field.
const DefaultRecipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

var DefaultAmount = decimal.New(1, -1) // 0.1

// Request field names, as reported in PaymentRequest.Defaulted.
const (
	FieldAmount     = "amount"
	FieldToken      = "token"
	FieldRecipient  = "recipient"
	FieldConditions = "conditions"
	FieldUrgency    = "urgency"
)

// RawPaymentRequest is caller input before parsing. Empty explicit fields are
// treated as absent.
type RawPaymentRequest struct {
	Description string
	Amount      string
	Token       string
	Recipient   string
	Urgency     string
}

// PaymentRequest is the structured, immutable form of a payment request.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Token       Token           `json:"token"`
	Recipient   string          `json:"recipient"`
	Conditions  []string        `json:"conditions"`
	Urgency     Urgency         `json:"urgency"`
	Description string          `json:"description"`
	Source      Source          `json:"source"`
	Defaulted   []string        `json:"defaulted,omitempty"` // fields filled from fallbacks
}

// FallbackPaymentRequest is the request produced when nothing could be
// extracted from the description.
func FallbackPaymentRequest(description string) PaymentRequest {
	return PaymentRequest{
		Amount:      DefaultAmount,
		Token:       PrimaryToken,
		Recipient:   DefaultRecipient,
		Conditions:  []string{ConditionImmediate},
		Urgency:     UrgencyMedium,
		Description: description,
		Source:      SourceFallback,
	}
}
