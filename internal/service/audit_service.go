package service

import (
	"context"
	"sync"

	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

const auditQueueSize = 1024

// AuditRecorder writes every lifecycle event to the audit trail.
// It implements ports.IntentNotifier. Records are persisted by a single
// worker in the order Notify was called, so an intent's trail is never
// reordered.
type AuditRecorder struct {
	repo ports.IntentEventRepository
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.AuditRecord
	done   chan struct{}
}

// NewAuditRecorder creates an audit recorder and starts its worker. If repo
// is nil, events are only written to the logger.
func NewAuditRecorder(repo ports.IntentEventRepository, log zerolog.Logger) *AuditRecorder {
	s := &AuditRecorder{
		repo:  repo,
		log:   log,
		queue: make(chan *domain.AuditRecord, auditQueueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Notify queues event for persistence. It blocks only while the queue is full.
func (s *AuditRecorder) Notify(_ context.Context, event domain.IntentEvent) {
	record := &domain.AuditRecord{
		IntentID:   event.IntentID,
		Type:       event.Type,
		Status:     event.Status,
		Detail:     auditDetail(event),
		OccurredAt: event.OccurredAt,
	}

	s.log.Info().
		Str("event", string(record.Type)).
		Str("intent_id", record.IntentID.String()).
		Str("status", string(record.Status)).
		Msg("audit")

	if s.repo == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn().Str("intent_id", record.IntentID.String()).Msg("audit recorder closed, record dropped")
		return
	}
	s.queue <- record
}

// Close stops accepting records and waits until queued ones are persisted
// or ctx expires.
func (s *AuditRecorder) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuditRecorder) run() {
	defer close(s.done)
	for record := range s.queue {
		if err := s.repo.Create(context.Background(), record); err != nil {
			s.log.Warn().Err(err).
				Str("intent_id", record.IntentID.String()).
				Str("event", string(record.Type)).
				Msg("failed to persist audit record")
		}
	}
}

func auditDetail(event domain.IntentEvent) string {
	switch {
	case event.Intent.Error != nil:
		return event.Intent.Error.Code + ": " + event.Intent.Error.Message
	case event.Intent.SettlementReference != "":
		return "reference " + event.Intent.SettlementReference
	default:
		return ""
	}
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []ports.IntentNotifier

// Notify implements ports.IntentNotifier.
func (n Notifiers) Notify(ctx context.Context, event domain.IntentEvent) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}
