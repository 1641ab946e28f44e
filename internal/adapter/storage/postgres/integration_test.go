//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("payment_intents"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool, zerolog.Nop()))
	return pool
}

func TestIntegration_IntentLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewIntentRepo(pool)
	events := NewEventRepo(pool)

	in := newTestIntent()
	require.NoError(t, repo.Create(ctx, in))
	require.NoError(t, events.Create(ctx, &domain.AuditRecord{
		IntentID: in.ID, Type: domain.EventIntentCreated, Status: in.Status, OccurredAt: in.CreatedAt,
	}))

	require.NoError(t, in.BeginExecution(time.Now().UTC()))
	ok, err := repo.Update(ctx, in, domain.IntentStatusPendingApproval)
	require.NoError(t, err)
	require.True(t, ok)

	// a second writer with the stale expectation loses
	ok, err = repo.Update(ctx, in, domain.IntentStatusPendingApproval)
	require.NoError(t, err)
	assert.False(t, ok)

	gas := uint64(21000)
	require.NoError(t, in.Complete(time.Now().UTC(), "0xDEADBEEF", &gas))
	ok, err = repo.Update(ctx, in, domain.IntentStatusExecuting)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByID(ctx, in.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.IntentStatusCompleted, got.Status)
	assert.Equal(t, "0xDEADBEEF", got.SettlementReference)
	assert.Equal(t, "200000000000000000", got.Transaction.ValueMinorUnits.String())

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
	assert.True(t, in.Request.Amount.Equal(stats.CompletedVolume[domain.TokenETH]))

	list, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := repo.DeleteTerminalBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := events.ListByIntent(ctx, in.ID)
	require.NoError(t, err)
	assert.Empty(t, records, "events cascade with their intent")
}
