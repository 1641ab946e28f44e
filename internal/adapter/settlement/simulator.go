package settlement

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/traces"

	"github.com/rs/zerolog"
)

// ErrSimulatedFailure is returned when the simulator rolls a failure.
var ErrSimulatedFailure = errors.New("settlement: simulated network failure")

// SimulatorConfig configures the simulated backend.
type SimulatorConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64 // 0..1
	Seed        uint64  // 0 = random
}

// Simulator pretends to mine transactions after a random delay.
type Simulator struct {
	cfg SimulatorConfig
	log zerolog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	block uint64
}

var _ ports.SettlementClient = (*Simulator)(nil)

// NewSimulator creates a simulator. A non-zero seed makes hashes, delays
// and failures reproducible.
func NewSimulator(cfg SimulatorConfig, log zerolog.Logger) *Simulator {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulator{
		cfg:   cfg,
		log:   log,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		block: 1,
	}
}

// Submit waits for the simulated confirmation delay, then returns a random
// transaction hash. It gives up as soon as ctx ends.
func (s *Simulator) Submit(ctx context.Context, tx domain.TransactionData) (*ports.SettlementReceipt, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.simulated.submit", traces.Token(string(tx.Token)))
	defer span.End()

	delay, fail, hash, block := s.roll()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		err := fmt.Errorf("settlement: simulated confirmation: %w", ctx.Err())
		traces.RecordError(span, err)
		return nil, err
	case <-timer.C:
	}

	if fail {
		traces.RecordError(span, ErrSimulatedFailure)
		return nil, ErrSimulatedFailure
	}

	gasUsed := tx.GasLimit
	if gasUsed == 0 {
		gasUsed = domain.NativeTransferGas
	}
	s.log.Debug().
		Str("tx_hash", hash).
		Dur("delay", delay).
		Str("token", string(tx.Token)).
		Msg("simulated transaction mined")

	return &ports.SettlementReceipt{Reference: hash, GasUsed: &gasUsed, BlockNumber: &block}, nil
}

func (s *Simulator) roll() (time.Duration, bool, string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.cfg.MinDelay
	if spread := s.cfg.MaxDelay - s.cfg.MinDelay; spread > 0 {
		delay += time.Duration(s.rng.Int64N(int64(spread) + 1))
	}
	fail := s.cfg.FailureRate > 0 && s.rng.Float64() < s.cfg.FailureRate

	var b [32]byte
	for i := 0; i < len(b); i += 8 {
		v := s.rng.Uint64()
		for j := 0; j < 8; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}

	s.block++
	return delay, fail, "0x" + hex.EncodeToString(b[:]), s.block
}
