// Package memory provides in-process implementations of the storage ports
// for single-node deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentStore is a bounded in-memory ports.IntentRepository.
type IntentStore struct {
	mu       sync.RWMutex
	intents  map[uuid.UUID]*domain.PaymentIntent
	order    []uuid.UUID // insertion order, oldest first
	capacity int
}

// NewIntentStore creates a store holding at most capacity intents.
// capacity <= 0 means unbounded.
func NewIntentStore(capacity int) *IntentStore {
	return &IntentStore{
		intents:  make(map[uuid.UUID]*domain.PaymentIntent),
		capacity: capacity,
	}
}

func (s *IntentStore) Create(_ context.Context, intent *domain.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intents[intent.ID]; exists {
		return fmt.Errorf("intent %s already exists", intent.ID)
	}
	if s.capacity > 0 && len(s.intents) >= s.capacity {
		return ports.ErrStoreFull
	}
	cp := intent.Clone()
	s.intents[intent.ID] = &cp
	s.order = append(s.order, intent.ID)
	return nil
}

func (s *IntentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, nil
	}
	cp := intent.Clone()
	return &cp, nil
}

func (s *IntentStore) ListRecent(_ context.Context, limit int) ([]domain.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.order) {
		limit = len(s.order)
	}
	result := make([]domain.PaymentIntent, 0, max(limit, 0))
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.intents[s.order[i]].Clone())
	}
	return result, nil
}

func (s *IntentStore) Update(_ context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.intents[intent.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	cp := intent.Clone()
	s.intents[intent.ID] = &cp
	return true, nil
}

func (s *IntentStore) Stats(_ context.Context) (*domain.IntentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.IntentStats{CompletedVolume: make(map[domain.Token]decimal.Decimal)}
	for _, intent := range s.intents {
		stats.Total++
		stats.RiskScoreSum += int64(intent.Risk.Score)
		switch intent.Status {
		case domain.IntentStatusPendingApproval:
			stats.Pending++
		case domain.IntentStatusExecuting:
			stats.Executing++
		case domain.IntentStatusCompleted:
			stats.Completed++
			token := intent.Request.Token
			stats.CompletedVolume[token] = stats.CompletedVolume[token].Add(intent.Request.Amount)
		case domain.IntentStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *IntentStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.order[:0]
	for _, id := range s.order {
		intent := s.intents[id]
		if intent.IsTerminal() && intent.CreatedAt.Before(cutoff) {
			delete(s.intents, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

// Len returns the number of stored intents.
func (s *IntentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}
