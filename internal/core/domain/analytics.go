package domain

import "github.com/shopspring/decimal"

// IntentStats is the raw aggregate a store computes over its contents.
type IntentStats struct {
	Total           int64
	Pending         int64
	Executing       int64
	Completed       int64
	Failed          int64
	RiskScoreSum    int64
	CompletedVolume map[Token]decimal.Decimal
}

// Analytics summarizes the intent store.
type Analytics struct {
	Total                int64                     `json:"total"`
	Completed            int64                     `json:"completed"`
	Pending              int64                     `json:"pending"`
	Executing            int64                     `json:"executing"`
	Failed               int64                     `json:"failed"`
	SuccessRate          float64                   `json:"success_rate"`
	AverageRiskScore     float64                   `json:"average_risk_score"`
	TotalCompletedAmount map[Token]decimal.Decimal `json:"total_completed_amount"`
	LatestMarketSnapshot *MarketSnapshot           `json:"latest_market_snapshot,omitempty"`
	Recent               []PaymentIntent           `json:"recent"`
}

// RecentIntentsInAnalytics is how many intents Analytics embeds.
const RecentIntentsInAnalytics = 5

// BuildAnalytics derives rates from raw stats. Rates are 0 for an empty store.
func BuildAnalytics(stats IntentStats, snapshot *MarketSnapshot, recent []PaymentIntent) Analytics {
	a := Analytics{
		Total:                stats.Total,
		Completed:            stats.Completed,
		Pending:              stats.Pending,
		Executing:            stats.Executing,
		Failed:               stats.Failed,
		TotalCompletedAmount: make(map[Token]decimal.Decimal, len(stats.CompletedVolume)),
		LatestMarketSnapshot: snapshot,
		Recent:               recent,
	}
	for token, amount := range stats.CompletedVolume {
		a.TotalCompletedAmount[token] = amount
	}
	if a.Recent == nil {
		a.Recent = []PaymentIntent{}
	}
	if stats.Total > 0 {
		a.SuccessRate = float64(stats.Completed) / float64(stats.Total)
		a.AverageRiskScore = float64(stats.RiskScoreSum) / float64(stats.Total)
	}
	return a
}
