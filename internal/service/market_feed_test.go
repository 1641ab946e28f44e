package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sampleSnapshot(at time.Time, gwei int64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Price:       decimal.NewFromInt(2200),
		FeeRateGwei: decimal.NewFromInt(gwei),
		Congestion:  domain.CongestionNormal,
		Timestamp:   at,
		Source:      domain.SourceSimulated,
	}
}

func TestMarketFeed_RefreshPublishesAndMirrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockMarketSource(ctrl)
	store := mocks.NewMockSnapshotStore(ctrl)

	snap := sampleSnapshot(time.Now(), 22)
	source.EXPECT().Sample(gomock.Any()).Return(snap, nil)
	store.EXPECT().Save(gomock.Any(), snap).Return(nil)

	feed := NewMarketFeed(source, store, time.Second, newTestLogger())
	_, ok := feed.Current()
	assert.False(t, ok)

	require.NoError(t, feed.Refresh(context.Background()))
	got, ok := feed.Current()
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestMarketFeed_FailureKeepsPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockMarketSource(ctrl)

	snap := sampleSnapshot(time.Now(), 22)
	gomock.InOrder(
		source.EXPECT().Sample(gomock.Any()).Return(snap, nil),
		source.EXPECT().Sample(gomock.Any()).Return(domain.MarketSnapshot{}, errors.New("rpc down")),
	)

	feed := NewMarketFeed(source, nil, time.Second, newTestLogger())
	require.NoError(t, feed.Refresh(context.Background()))
	assert.Error(t, feed.Refresh(context.Background()))

	got, ok := feed.Current()
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestMarketFeed_FailureAdoptsNewerStoredSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockMarketSource(ctrl)
	store := mocks.NewMockSnapshotStore(ctrl)

	stored := sampleSnapshot(time.Now(), 31)
	source.EXPECT().Sample(gomock.Any()).Return(domain.MarketSnapshot{}, errors.New("rpc down"))
	store.EXPECT().Latest(gomock.Any()).Return(&stored, nil)

	feed := NewMarketFeed(source, store, time.Second, newTestLogger())
	assert.Error(t, feed.Refresh(context.Background()))

	got, ok := feed.Current()
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestMarketFeed_StartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockMarketSource(ctrl)

	sampled := make(chan struct{}, 16)
	source.EXPECT().Sample(gomock.Any()).DoAndReturn(func(context.Context) (domain.MarketSnapshot, error) {
		select {
		case sampled <- struct{}{}:
		default:
		}
		return sampleSnapshot(time.Now(), 20), nil
	}).MinTimes(2)

	feed := NewMarketFeed(source, nil, 10*time.Millisecond, newTestLogger())
	feed.Start(context.Background())
	feed.Start(context.Background()) // second start is a no-op
	assert.True(t, feed.IsRunning())

	for range 2 {
		select {
		case <-sampled:
		case <-time.After(2 * time.Second):
			t.Fatal("feed did not sample")
		}
	}

	feed.Stop()
	assert.False(t, feed.IsRunning())
	_, ok := feed.Current()
	assert.True(t, ok)
	feed.Stop() // idempotent
}

func TestMarketFeed_StopsWithContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockMarketSource(ctrl)
	source.EXPECT().Sample(gomock.Any()).Return(sampleSnapshot(time.Now(), 20), nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	feed := NewMarketFeed(source, nil, time.Hour, newTestLogger())
	feed.Start(ctx)
	cancel()

	// Stop still returns once the loop has exited on ctx
	done := make(chan struct{})
	go func() {
		feed.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
