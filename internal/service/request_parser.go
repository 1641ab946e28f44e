package service

import (
	"context"
	"errors"
	"strings"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"
	"payment-intent-engine/pkg/apperror"
	"payment-intent-engine/pkg/units"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RequestParserImpl implements ports.RequestParser.
type RequestParserImpl struct {
	analysis ports.AnalysisClient
	log      zerolog.Logger
}

// NewRequestParser creates a parser. A nil analysis client means every
// inferred field takes its default.
func NewRequestParser(analysis ports.AnalysisClient, log zerolog.Logger) *RequestParserImpl {
	return &RequestParserImpl{analysis: analysis, log: log}
}

// explicitFields holds validated caller-supplied fields.
type explicitFields struct {
	amount    *decimal.Decimal
	token     domain.Token
	recipient string
	urgency   domain.Urgency
}

// Parse builds a PaymentRequest. Explicit fields win over extracted ones;
// anything still missing takes the documented default.
func (p *RequestParserImpl) Parse(ctx context.Context, raw domain.RawPaymentRequest) (domain.PaymentRequest, error) {
	explicit, err := validateExplicit(raw)
	if err != nil {
		return domain.PaymentRequest{}, err
	}

	description := strings.TrimSpace(raw.Description)
	if description == "" && (explicit.amount == nil || explicit.recipient == "") {
		return domain.PaymentRequest{}, apperror.Validation("description is required unless amount and recipient are given")
	}

	extraction, source := p.extract(ctx, description)

	req := domain.PaymentRequest{
		Description: description,
		Source:      source,
	}
	var malformed bool

	// token first: amount precision depends on it
	switch {
	case explicit.token != "":
		req.Token = explicit.token
	case extraction != nil && extraction.Token != "":
		tok, ok := domain.ParseToken(extraction.Token)
		if ok && explicit.amount != nil && !fitsToken(*explicit.amount, tok) {
			// an inferred token cannot invalidate the caller's amount
			ok = false
		}
		if ok {
			req.Token = tok
		} else {
			malformed = true
		}
	}
	if req.Token == "" {
		req.Token = domain.PrimaryToken
		req.Defaulted = append(req.Defaulted, domain.FieldToken)
	}
	info, _ := req.Token.Info()

	switch {
	case explicit.amount != nil:
		if err := units.CheckPrecision(*explicit.amount, info.Decimals); err != nil {
			return domain.PaymentRequest{}, apperror.Validation(err.Error())
		}
		req.Amount = *explicit.amount
	case extraction != nil && extraction.Amount != "":
		amount, err := units.ParseAmount(extraction.Amount)
		if err == nil {
			err = units.CheckPrecision(amount, info.Decimals)
		}
		if err == nil {
			req.Amount = amount
		} else {
			malformed = true
		}
	}
	if req.Amount.Sign() <= 0 {
		req.Amount = domain.DefaultAmount
		req.Defaulted = append(req.Defaulted, domain.FieldAmount)
	}

	switch {
	case explicit.recipient != "":
		req.Recipient = explicit.recipient
	case extraction != nil:
		req.Recipient = strings.TrimSpace(extraction.Recipient)
	}
	if req.Recipient == "" {
		req.Recipient = domain.DefaultRecipient
		req.Defaulted = append(req.Defaulted, domain.FieldRecipient)
	}

	switch {
	case explicit.urgency != "":
		req.Urgency = explicit.urgency
	case extraction != nil && extraction.Urgency != "":
		if u, ok := domain.ParseUrgency(extraction.Urgency); ok {
			req.Urgency = u
		} else {
			malformed = true
		}
	}
	if req.Urgency == "" {
		req.Urgency = domain.UrgencyMedium
		req.Defaulted = append(req.Defaulted, domain.FieldUrgency)
	}

	if extraction != nil {
		for _, c := range extraction.Conditions {
			if c = strings.TrimSpace(c); c != "" {
				req.Conditions = append(req.Conditions, c)
			}
		}
		if d := strings.TrimSpace(extraction.Description); d != "" {
			req.Description = d
		}
	}
	if len(req.Conditions) == 0 {
		req.Conditions = []string{domain.ConditionImmediate}
		req.Defaulted = append(req.Defaulted, domain.FieldConditions)
	}

	if malformed {
		req.Source = domain.SourceFallback
		metrics.CollaboratorFallbacksTotal.WithLabelValues(stageParse).Inc()
		p.log.Warn().Msg("analysis returned malformed fields, defaults applied")
	}
	return req, nil
}

// extract asks the analysis collaborator for fields. It returns nil and
// SourceFallback when the collaborator is absent or fails.
func (p *RequestParserImpl) extract(ctx context.Context, description string) (*ports.PaymentExtraction, domain.Source) {
	if p.analysis == nil || description == "" {
		return nil, domain.SourceFallback
	}
	extraction, err := p.analysis.ExtractPayment(ctx, description)
	if err != nil || extraction == nil {
		if err == nil {
			err = errors.New("empty extraction")
		}
		metrics.CollaboratorFallbacksTotal.WithLabelValues(stageParse).Inc()
		p.log.Warn().Err(err).Msg("payment extraction failed, using defaults")
		return nil, domain.SourceFallback
	}
	return extraction, domain.SourceAI
}

func fitsToken(amount decimal.Decimal, tok domain.Token) bool {
	info, ok := tok.Info()
	return ok && units.CheckPrecision(amount, info.Decimals) == nil
}

func validateExplicit(raw domain.RawPaymentRequest) (explicitFields, error) {
	var f explicitFields

	if s := strings.TrimSpace(raw.Amount); s != "" {
		amount, err := units.ParseAmount(s)
		if err != nil {
			return f, apperror.Validation("amount must be a decimal number")
		}
		if amount.Sign() <= 0 {
			return f, apperror.Validation("amount must be positive")
		}
		f.amount = &amount
	}

	if s := strings.TrimSpace(raw.Token); s != "" {
		tok, ok := domain.ParseToken(s)
		if !ok {
			return f, apperror.Validation("unsupported token: " + s)
		}
		f.token = tok
	}

	f.recipient = strings.TrimSpace(raw.Recipient)

	if s := strings.TrimSpace(raw.Urgency); s != "" {
		u, ok := domain.ParseUrgency(s)
		if !ok {
			return f, apperror.Validation("urgency must be one of low, medium, high")
		}
		f.urgency = u
	}
	return f, nil
}
