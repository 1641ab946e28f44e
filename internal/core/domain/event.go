package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventIntentCreated          EventType = "intent.created"
	EventIntentExecutionStarted EventType = "intent.execution_started"
	EventIntentCompleted        EventType = "intent.completed"
	EventIntentFailed           EventType = "intent.failed"
)

// IsTerminal returns true for events that end an intent's lifecycle.
func (t EventType) IsTerminal() bool {
	return t == EventIntentCompleted || t == EventIntentFailed
}

// IntentEvent is emitted after every persisted transition.
type IntentEvent struct {
	Type       EventType     `json:"type"`
	IntentID   uuid.UUID     `json:"intent_id"`
	Status     IntentStatus  `json:"status"`
	Intent     PaymentIntent `json:"intent"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewIntentEvent snapshots intent into an event.
func NewIntentEvent(t EventType, intent *PaymentIntent, at time.Time) IntentEvent {
	return IntentEvent{
		Type:       t,
		IntentID:   intent.ID,
		Status:     intent.Status,
		Intent:     intent.Clone(),
		OccurredAt: at,
	}
}

// AuditRecord is a persisted IntentEvent without the intent body.
type AuditRecord struct {
	ID         int64        `json:"id"`
	IntentID   uuid.UUID    `json:"intent_id"`
	Type       EventType    `json:"type"`
	Status     IntentStatus `json:"status"`
	Detail     string       `json:"detail,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
