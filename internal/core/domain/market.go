package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Congestion is the observed network load.
type Congestion string

const (
	CongestionLow    Congestion = "low"
	CongestionNormal Congestion = "normal"
	CongestionHigh   Congestion = "high"
)

// MarketSnapshot is a point-in-time copy of market conditions.
type MarketSnapshot struct {
	Price       decimal.Decimal `json:"price"`         // primary token in USD
	FeeRateGwei decimal.Decimal `json:"fee_rate_gwei"` // gas price
	Congestion  Congestion      `json:"congestion"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      Source          `json:"source"`
}

// DefaultMarketSnapshot is used before the feed has produced a sample.
func DefaultMarketSnapshot(now time.Time) MarketSnapshot {
	return MarketSnapshot{
		Price:       decimal.NewFromInt(2200),
		FeeRateGwei: decimal.NewFromInt(20),
		Congestion:  CongestionNormal,
		Timestamp:   now,
		Source:      SourceFallback,
	}
}

// TimingMode is when an intent should be executed.
type TimingMode string

const (
	TimingImmediate TimingMode = "immediate"
	TimingDeferred  TimingMode = "deferred"
)

// ExecutionTiming is the recommended execution timing. DelaySeconds is set
// only for deferred timing.
type ExecutionTiming struct {
	Mode         TimingMode `json:"mode"`
	DelaySeconds int64      `json:"delay_seconds,omitempty"`
}

// Delay returns the deferral as a duration.
func (t ExecutionTiming) Delay() time.Duration {
	return time.Duration(t.DelaySeconds) * time.Second
}

// CostOptimization is the fee-driven execution advice.
type CostOptimization string

const (
	CostExecuteNow     CostOptimization = "execute_now"
	CostDelayExecution CostOptimization = "delay_execution"
)

// MarketAnalysis holds the market conditions an intent was evaluated against.
type MarketAnalysis struct {
	Snapshot         MarketSnapshot   `json:"snapshot"`
	Conditions       []string         `json:"conditions"`
	Timing           ExecutionTiming  `json:"optimal_execution_timing"`
	CostOptimization CostOptimization `json:"cost_optimization"`
}
