package service

import (
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// MarketEvaluatorImpl implements ports.MarketEvaluator. It performs no I/O.
type MarketEvaluatorImpl struct {
	thresholdGwei int64
	deferral      time.Duration
}

// NewMarketEvaluator creates an evaluator that flags fee rates above
// thresholdGwei and defers execution by deferral under high congestion.
func NewMarketEvaluator(thresholdGwei int64, deferral time.Duration) *MarketEvaluatorImpl {
	return &MarketEvaluatorImpl{thresholdGwei: thresholdGwei, deferral: deferral}
}

// Evaluate derives execution conditions and timing from snapshot.
func (e *MarketEvaluatorImpl) Evaluate(_ domain.PaymentRequest, snapshot domain.MarketSnapshot) domain.MarketAnalysis {
	analysis := domain.MarketAnalysis{
		Snapshot:         snapshot,
		Conditions:       []string{},
		Timing:           domain.ExecutionTiming{Mode: domain.TimingImmediate},
		CostOptimization: domain.CostExecuteNow,
	}

	if snapshot.FeeRateGwei.GreaterThan(decimal.NewFromInt(e.thresholdGwei)) {
		analysis.Conditions = append(analysis.Conditions, domain.FeeBelowCondition(e.thresholdGwei))
		analysis.CostOptimization = domain.CostDelayExecution
	}

	if snapshot.Congestion == domain.CongestionHigh {
		analysis.Conditions = append(analysis.Conditions, domain.ConditionNetworkClear)
		analysis.Timing = domain.ExecutionTiming{
			Mode:         domain.TimingDeferred,
			DelaySeconds: int64(e.deferral / time.Second),
		}
	}
	return analysis
}
