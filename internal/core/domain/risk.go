package domain

// Recommendation is the risk model's suggested action.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendHold    Recommendation = "hold"
	RecommendReject  Recommendation = "reject"
)

// ParseRecommendation reports whether s is a known recommendation.
func ParseRecommendation(s string) (Recommendation, bool) {
	switch r := Recommendation(s); r {
	case RecommendApprove, RecommendHold, RecommendReject:
		return r, true
	default:
		return "", false
	}
}

const (
	MinRiskScore = 0
	MaxRiskScore = 100

	// HighRiskThreshold is the score above which transactions need
	// additional verification.
	HighRiskThreshold = 70

	FactorAnalysisFailed = "ai_analysis_failed"
)

// RiskAssessment is the risk score attached to one intent.
type RiskAssessment struct {
	Score          int            `json:"score"`
	Factors        []string       `json:"factors"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Source         Source         `json:"source"`
}

// ClampScore bounds a model score to [0,100].
func ClampScore(score int) int {
	switch {
	case score < MinRiskScore:
		return MinRiskScore
	case score > MaxRiskScore:
		return MaxRiskScore
	default:
		return score
	}
}

// FallbackRiskAssessment is the low-risk default used when scoring fails.
func FallbackRiskAssessment() RiskAssessment {
	return RiskAssessment{
		Score:          20,
		Factors:        []string{FactorAnalysisFailed},
		Recommendation: RecommendApprove,
		Reasoning:      "Using default low risk due to AI failure",
		Source:         SourceFallback,
	}
}
