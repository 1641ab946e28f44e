package ports

import (
	"context"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// --- Service Ports (Business Logic) ---

// IntentEngine owns payment intents and their state machine.
type IntentEngine interface {
	Create(ctx context.Context, raw domain.RawPaymentRequest) (*domain.PaymentIntent, error)
	Execute(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	ListRecent(ctx context.Context, n int) ([]domain.PaymentIntent, error)
	Analytics(ctx context.Context) (*domain.Analytics, error)
}

// RequestParser turns caller input into a PaymentRequest. Only malformed
// explicit fields produce an error.
type RequestParser interface {
	Parse(ctx context.Context, raw domain.RawPaymentRequest) (domain.PaymentRequest, error)
}

// RiskAssessor scores a request. It always returns an assessment.
type RiskAssessor interface {
	Assess(ctx context.Context, request domain.PaymentRequest) domain.RiskAssessment
}

// MarketEvaluator derives execution conditions from a snapshot. Pure.
type MarketEvaluator interface {
	Evaluate(request domain.PaymentRequest, snapshot domain.MarketSnapshot) domain.MarketAnalysis
}

// TransactionBuilder converts a scored request into backend-ready data.
type TransactionBuilder interface {
	Build(ctx context.Context, request domain.PaymentRequest, risk domain.RiskAssessment, snapshot *domain.MarketSnapshot) (domain.TransactionData, error)
}

// AuthService defines operator authentication.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}
