package postgres

import (
	"context"
	"testing"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := &domain.AuditRecord{
		IntentID:   uuid.New(),
		Type:       domain.EventIntentCompleted,
		Status:     domain.IntentStatusCompleted,
		Detail:     "reference 0xabc",
		OccurredAt: time.Now().UTC(),
	}

	mock.ExpectQuery("INSERT INTO intent_events").
		WithArgs(rec.IntentID, "intent.completed", "COMPLETED", rec.Detail, rec.OccurredAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, NewEventRepo(mock).Create(context.Background(), rec))
	assert.Equal(t, int64(42), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ListByIntent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM intent_events WHERE intent_id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "intent_id", "event_type", "status", "detail", "occurred_at"}).
			AddRow(int64(1), id, "intent.created", "PENDING_APPROVAL", "", now).
			AddRow(int64(2), id, "intent.execution_started", "EXECUTING", "", now))

	records, err := NewEventRepo(mock).ListByIntent(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.EventIntentCreated, records[0].Type)
	assert.Equal(t, domain.IntentStatusExecuting, records[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
