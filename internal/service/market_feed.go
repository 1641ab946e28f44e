package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"

	"github.com/rs/zerolog"
)

// MarketFeed periodically samples a MarketSource and publishes the result
// as an immutable snapshot. It implements ports.SnapshotProvider.
type MarketFeed struct {
	source   ports.MarketSource
	store    ports.SnapshotStore
	interval time.Duration
	current  atomic.Pointer[domain.MarketSnapshot]

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	running  bool

	log zerolog.Logger
}

// NewMarketFeed creates a feed. store is optional; when set, every sample is
// mirrored to it and read back when the source fails.
func NewMarketFeed(source ports.MarketSource, store ports.SnapshotStore, interval time.Duration, log zerolog.Logger) *MarketFeed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MarketFeed{
		source:   source,
		store:    store,
		interval: interval,
		log:      log,
	}
}

// Start begins periodic sampling. The first sample is taken immediately.
func (f *MarketFeed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return
	}

	f.stopChan = make(chan struct{})
	f.done = make(chan struct{})
	f.running = true

	go f.run(ctx, f.stopChan, f.done)
	f.log.Info().Dur("interval", f.interval).Msg("market data feed started")
}

// Stop halts sampling and waits for the loop to exit.
func (f *MarketFeed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	close(f.stopChan)
	done := f.done
	f.stopChan = nil
	f.running = false
	f.mu.Unlock()

	<-done
	f.log.Info().Msg("market data feed stopped")
}

// IsRunning returns whether the sampling loop is active.
func (f *MarketFeed) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Current returns the latest snapshot. ok is false before the first sample.
func (f *MarketFeed) Current() (domain.MarketSnapshot, bool) {
	snap := f.current.Load()
	if snap == nil {
		return domain.MarketSnapshot{}, false
	}
	return *snap, true
}

func (f *MarketFeed) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	_ = f.Refresh(ctx)

	for {
		select {
		case <-ticker.C:
			_ = f.Refresh(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Refresh takes one sample and publishes it.
func (f *MarketFeed) Refresh(ctx context.Context) error {
	sampleCtx, cancel := context.WithTimeout(ctx, f.interval)
	defer cancel()

	snap, err := f.source.Sample(sampleCtx)
	if err != nil {
		metrics.MarketSampleFailuresTotal.Inc()
		f.log.Warn().Err(err).Msg("market sample failed")
		f.adoptStored(sampleCtx)
		return err
	}

	f.publish(snap)
	if f.store != nil {
		if err := f.store.Save(sampleCtx, snap); err != nil {
			f.log.Warn().Err(err).Msg("failed to mirror market snapshot")
		}
	}
	return nil
}

// adoptStored publishes the mirrored snapshot if it is newer than ours.
func (f *MarketFeed) adoptStored(ctx context.Context) {
	if f.store == nil {
		return
	}
	stored, err := f.store.Latest(ctx)
	if err != nil || stored == nil {
		return
	}
	if cur := f.current.Load(); cur == nil || stored.Timestamp.After(cur.Timestamp) {
		f.publish(*stored)
	}
}

func (f *MarketFeed) publish(snap domain.MarketSnapshot) {
	f.current.Store(&snap)
	metrics.MarketFeeRateGwei.Set(snap.FeeRateGwei.InexactFloat64())
	metrics.MarketPriceUSD.Set(snap.Price.InexactFloat64())
}
