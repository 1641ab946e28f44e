package postgres

import (
	"context"
	"fmt"

	"payment-intent-engine/internal/core/domain"

	"github.com/google/uuid"
)

// EventRepo implements ports.IntentEventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create inserts an audit record and sets its ID.
func (r *EventRepo) Create(ctx context.Context, record *domain.AuditRecord) error {
	query := `INSERT INTO intent_events (intent_id, event_type, status, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		record.IntentID, string(record.Type), string(record.Status), record.Detail, record.OccurredAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("insert intent event: %w", err)
	}
	return nil
}

// ListByIntent returns the audit trail of one intent, oldest first.
func (r *EventRepo) ListByIntent(ctx context.Context, intentID uuid.UUID) ([]domain.AuditRecord, error) {
	query := `SELECT id, intent_id, event_type, status, detail, occurred_at
		FROM intent_events WHERE intent_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, intentID)
	if err != nil {
		return nil, fmt.Errorf("list intent events: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec               domain.AuditRecord
			eventType, status string
		)
		if err := rows.Scan(&rec.ID, &rec.IntentID, &eventType, &status, &rec.Detail, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan intent event: %w", err)
		}
		rec.Type = domain.EventType(eventType)
		rec.Status = domain.IntentStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intent events: %w", err)
	}
	return records, nil
}
