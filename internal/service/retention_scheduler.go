package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RetentionScheduler prunes terminal intents older than maxAge on a cron
// schedule.
type RetentionScheduler struct {
	repo     ports.IntentRepository
	clock    ports.Clock
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
	log      zerolog.Logger
}

// NewRetentionScheduler creates a scheduler. An empty schedule disables it.
func NewRetentionScheduler(repo ports.IntentRepository, clock ports.Clock, schedule string, maxAge time.Duration, log zerolog.Logger) *RetentionScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RetentionScheduler{
		repo:     repo,
		clock:    clock,
		schedule: schedule,
		maxAge:   maxAge,
		cron:     cron.New(),
		log:      log,
	}
}

// Start registers the pruning job and starts the cron runner. It stops
// automatically when ctx is done.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.maxAge <= 0 {
		s.log.Info().Msg("retention not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.Prune(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.log.Info().Str("schedule", s.schedule).Dur("max_age", s.maxAge).Msg("retention scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Prune deletes terminal intents created before now - maxAge.
func (s *RetentionScheduler) Prune(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.maxAge)

	deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled pruning failed")
		return 0, err
	}

	metrics.RetentionPrunedTotal.Add(float64(deleted))
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Time("cutoff", cutoff).Msg("scheduled pruning completed")
	} else {
		s.log.Debug().Msg("scheduled pruning completed, no intents deleted")
	}
	return deleted, nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.log.Info().Msg("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pruning time, or nil when idle.
func (s *RetentionScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
