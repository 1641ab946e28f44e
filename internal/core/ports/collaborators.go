package ports

import (
	"context"
	"math/big"
	"time"

	"payment-intent-engine/internal/core/domain"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators_mock.go -package=mocks

// PaymentExtraction is what the analysis model read out of free text.
// Fields are unvalidated; empty means "not found".
type PaymentExtraction struct {
	Amount      string   `json:"amount"`
	Token       string   `json:"token"`
	Recipient   string   `json:"recipient"`
	Conditions  []string `json:"conditions"`
	Urgency     string   `json:"urgency"`
	Description string   `json:"description"`
}

// RiskAnalysis is the analysis model's raw risk verdict.
type RiskAnalysis struct {
	Score          int      `json:"riskScore"`
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
}

// AnalysisClient is the external natural-language / risk model.
type AnalysisClient interface {
	ExtractPayment(ctx context.Context, text string) (*PaymentExtraction, error)
	AssessRisk(ctx context.Context, request domain.PaymentRequest) (*RiskAnalysis, error)
}

// SettlementReceipt confirms a submitted transaction.
type SettlementReceipt struct {
	Reference   string
	GasUsed     *uint64
	BlockNumber *uint64
}

// SettlementClient submits transactions to the settlement backend.
// Submit is called at most once per execution and never retried.
type SettlementClient interface {
	Submit(ctx context.Context, tx domain.TransactionData) (*SettlementReceipt, error)
}

// MarketSource samples current market conditions.
type MarketSource interface {
	Sample(ctx context.Context) (domain.MarketSnapshot, error)
}

// FeeEstimate is a gas limit and per-gas price in wei.
type FeeEstimate struct {
	GasLimit uint64
	FeeRate  *big.Int
}

// FeeModel estimates execution cost for a draft transaction.
type FeeModel interface {
	Estimate(ctx context.Context, draft domain.TransactionData) (*FeeEstimate, error)
}

// SnapshotProvider exposes the most recent market snapshot.
// ok is false until the first sample has been taken.
type SnapshotProvider interface {
	Current() (snapshot domain.MarketSnapshot, ok bool)
}

// IntentNotifier receives lifecycle events. Implementations must not block
// the caller for long and never report failures back to the engine.
type IntentNotifier interface {
	Notify(ctx context.Context, event domain.IntentEvent)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
