package ports

import (
	"context"
	"errors"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// ErrStoreFull is returned by capacity-bounded intent stores.
var ErrStoreFull = errors.New("intent store is full")

// IntentRepository defines persistence operations for payment intents.
// Implementations store and return copies; callers never share state with
// the store.
type IntentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	// GetByID returns nil, nil when the intent does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	// ListRecent returns at most limit intents, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.PaymentIntent, error)
	// Update replaces the stored intent only if its status still equals
	// expected. Returns false when the status has moved on.
	Update(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) (bool, error)
	Stats(ctx context.Context) (*domain.IntentStats, error)
	// DeleteTerminalBefore removes COMPLETED/FAILED intents created before cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IntentEventRepository persists the lifecycle audit trail.
type IntentEventRepository interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
	ListByIntent(ctx context.Context, intentID uuid.UUID) ([]domain.AuditRecord, error)
}

// RiskScoreCache maps recipient -> most recent risk score.
type RiskScoreCache interface {
	Record(ctx context.Context, recipient string, score int) error
	// Lookup reports found=false when no score is cached.
	Lookup(ctx context.Context, recipient string) (score int, found bool, err error)
}

// SnapshotStore mirrors the latest market snapshot outside the process.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot domain.MarketSnapshot) error
	// Latest returns nil, nil when nothing has been saved.
	Latest(ctx context.Context) (*domain.MarketSnapshot, error)
}

// RateLimitStore is a fixed-window counter keyed by caller.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult is the outcome of one rate-limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
