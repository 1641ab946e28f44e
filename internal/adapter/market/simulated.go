// Package market samples market conditions: the primary token price, the
// network fee rate and congestion.
package market

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"

	"github.com/shopspring/decimal"
)

// SimulatedSource produces a plausible, slowly drifting market for local
// runs: the price oscillates around 2200, the fee rate jitters between 20
// and 35 gwei and roughly one sample in five is congested.
type SimulatedSource struct {
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ports.MarketSource = (*SimulatedSource)(nil)

// NewSimulatedSource creates a simulated source. A zero seed is random.
func NewSimulatedSource(clock ports.Clock, seed uint64) *SimulatedSource {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &SimulatedSource{
		now: clock.Now,
		rng: rand.New(rand.NewPCG(seed, ^seed)),
	}
}

// Sample never fails.
func (s *SimulatedSource) Sample(_ context.Context) (domain.MarketSnapshot, error) {
	now := s.now()

	s.mu.Lock()
	feeJitter := s.rng.Float64()
	congested := s.rng.Float64() > 0.8
	s.mu.Unlock()

	price := 2200 + math.Sin(float64(now.UnixMilli())/10000)*50
	congestion := domain.CongestionNormal
	if congested {
		congestion = domain.CongestionHigh
	}

	return domain.MarketSnapshot{
		Price:       decimal.NewFromFloat(price).Round(2),
		FeeRateGwei: decimal.NewFromFloat(20 + feeJitter*15).Round(2),
		Congestion:  congestion,
		Timestamp:   now,
		Source:      domain.SourceSimulated,
	}, nil
}
