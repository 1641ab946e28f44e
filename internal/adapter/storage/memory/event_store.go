package memory

import (
	"context"
	"sync"

	"payment-intent-engine/internal/core/domain"

	"github.com/google/uuid"
)

// EventStore is an in-memory ports.IntentEventRepository. Records beyond
// capacity evict the oldest.
type EventStore struct {
	mu       sync.RWMutex
	records  []domain.AuditRecord
	nextID   int64
	capacity int
}

// NewEventStore creates an event store. capacity <= 0 means unbounded.
func NewEventStore(capacity int) *EventStore {
	return &EventStore{capacity: capacity}
}

func (s *EventStore) Create(_ context.Context, record *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record.ID = s.nextID
	s.records = append(s.records, *record)
	if s.capacity > 0 && len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	return nil
}

func (s *EventStore) ListByIntent(_ context.Context, intentID uuid.UUID) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.AuditRecord
	for _, r := range s.records {
		if r.IntentID == intentID {
			result = append(result, r)
		}
	}
	return result, nil
}
