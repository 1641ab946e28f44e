package service

import (
	"context"
	"errors"
	"strings"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"

	"github.com/rs/zerolog"
)

var errMalformedRisk = errors.New("malformed risk analysis")

// RiskAssessorImpl implements ports.RiskAssessor.
type RiskAssessorImpl struct {
	analysis ports.AnalysisClient
	cache    ports.RiskScoreCache
	log      zerolog.Logger
}

// NewRiskAssessor creates a risk assessor. analysis and cache may be nil.
func NewRiskAssessor(analysis ports.AnalysisClient, cache ports.RiskScoreCache, log zerolog.Logger) *RiskAssessorImpl {
	return &RiskAssessorImpl{analysis: analysis, cache: cache, log: log}
}

// Assess scores request. Failures resolve to the fixed low-risk fallback.
func (r *RiskAssessorImpl) Assess(ctx context.Context, request domain.PaymentRequest) domain.RiskAssessment {
	assessment, err := r.score(ctx, request)
	if err != nil {
		metrics.CollaboratorFallbacksTotal.WithLabelValues(stageRisk).Inc()
		r.log.Warn().Err(err).Str("recipient", request.Recipient).Msg("risk assessment failed, using default")
		assessment = domain.FallbackRiskAssessment()
	}

	if r.cache != nil {
		if err := r.cache.Record(ctx, request.Recipient, assessment.Score); err != nil {
			r.log.Warn().Err(err).Str("recipient", request.Recipient).Msg("failed to cache risk score")
		}
	}
	return assessment
}

func (r *RiskAssessorImpl) score(ctx context.Context, request domain.PaymentRequest) (domain.RiskAssessment, error) {
	if r.analysis == nil {
		return domain.RiskAssessment{}, errors.New("analysis disabled")
	}
	res, err := r.analysis.AssessRisk(ctx, request)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	if res == nil {
		return domain.RiskAssessment{}, errMalformedRisk
	}

	rec, ok := domain.ParseRecommendation(strings.ToLower(strings.TrimSpace(res.Recommendation)))
	if !ok {
		return domain.RiskAssessment{}, errMalformedRisk
	}

	factors := make([]string, 0, len(res.Factors))
	for _, f := range res.Factors {
		if f = strings.TrimSpace(f); f != "" {
			factors = append(factors, f)
		}
	}

	return domain.RiskAssessment{
		Score:          domain.ClampScore(res.Score),
		Factors:        factors,
		Recommendation: rec,
		Reasoning:      res.Reasoning,
		Source:         domain.SourceAI,
	}, nil
}
