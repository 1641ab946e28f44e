package redis

import (
	"context"
	"testing"
	"time"

	"payment-intent-engine/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskCache_RecordAndLookup(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewRiskCache(client, time.Hour)
	ctx := context.Background()

	_, found, err := cache.Lookup(ctx, "0xABC")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Record(ctx, "0xABC", 42))

	score, found, err := cache.Lookup(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, score)
	assert.Equal(t, time.Hour, mr.TTL("risk:0xabc"))

	mr.FastForward(2 * time.Hour)
	_, found, err = cache.Lookup(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRiskCache_CorruptValue(t *testing.T) {
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set("risk:0xbad", "not-a-number"))

	_, _, err := NewRiskCache(client, 0).Lookup(context.Background(), "0xbad")
	assert.Error(t, err)
}

func TestSnapshotStore_SaveLatest(t *testing.T) {
	_, client := newTestClient(t)
	store := NewSnapshotStore(client)
	ctx := context.Background()

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	snap := domain.MarketSnapshot{
		Price:       decimal.RequireFromString("2212.5"),
		FeeRateGwei: decimal.RequireFromString("27.25"),
		Congestion:  domain.CongestionHigh,
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:      domain.SourceRPC,
	}
	require.NoError(t, store.Save(ctx, snap))

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, snap.Price.Equal(latest.Price))
	assert.True(t, snap.FeeRateGwei.Equal(latest.FeeRateGwei))
	assert.Equal(t, snap.Congestion, latest.Congestion)
	assert.True(t, snap.Timestamp.Equal(latest.Timestamp))
	assert.Equal(t, snap.Source, latest.Source)
}

func TestHealthCheck(t *testing.T) {
	mr, client := newTestClient(t)
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	mr.Close()
	assert.Error(t, hc.Ping(context.Background()))
}
