package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// IntentStatus represents the lifecycle state of a payment intent.
type IntentStatus string

const (
	IntentStatusPendingApproval IntentStatus = "PENDING_APPROVAL"
	IntentStatusExecuting       IntentStatus = "EXECUTING"
	IntentStatusCompleted       IntentStatus = "COMPLETED"
	IntentStatusFailed          IntentStatus = "FAILED"
)

// IsTerminal returns true if no further transition is allowed.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusCompleted || s == IntentStatusFailed
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to IntentStatus) bool {
	switch from {
	case IntentStatusPendingApproval:
		return to == IntentStatusExecuting
	case IntentStatusExecuting:
		return to == IntentStatusCompleted || to == IntentStatusFailed
	default:
		return false
	}
}

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid intent state transition")

// TransitionError reports a rejected status change.
type TransitionError struct {
	From IntentStatus
	To   IntentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid intent state transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IntentError is the failure recorded on a FAILED intent.
type IntentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentIntent is the aggregate root tracking one requested payment.
type PaymentIntent struct {
	ID                  uuid.UUID       `json:"id"`
	Status              IntentStatus    `json:"status"`
	Request             PaymentRequest  `json:"request"`
	Risk                RiskAssessment  `json:"risk_assessment"`
	Market              MarketAnalysis  `json:"market_analysis"`
	Transaction         TransactionData `json:"transaction"`
	CreatedAt           time.Time       `json:"created_at"`
	ExecutionStartedAt  *time.Time      `json:"execution_started_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	FailedAt            *time.Time      `json:"failed_at,omitempty"`
	SettlementReference string          `json:"settlement_reference,omitempty"`
	GasUsed             *uint64         `json:"gas_used,omitempty"`
	Error               *IntentError    `json:"error,omitempty"`
}

// IsTerminal returns true if the intent is COMPLETED or FAILED.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status.IsTerminal()
}

func (p *PaymentIntent) transition(to IntentStatus) error {
	if !CanTransition(p.Status, to) {
		return &TransitionError{From: p.Status, To: to}
	}
	p.Status = to
	return nil
}

// BeginExecution moves a PENDING_APPROVAL intent to EXECUTING.
func (p *PaymentIntent) BeginExecution(at time.Time) error {
	if err := p.transition(IntentStatusExecuting); err != nil {
		return err
	}
	p.ExecutionStartedAt = &at
	return nil
}

// Complete moves an EXECUTING intent to COMPLETED.
func (p *PaymentIntent) Complete(at time.Time, reference string, gasUsed *uint64) error {
	if err := p.transition(IntentStatusCompleted); err != nil {
		return err
	}
	p.CompletedAt = &at
	p.SettlementReference = reference
	p.GasUsed = gasUsed
	return nil
}

// Fail moves an EXECUTING intent to FAILED.
func (p *PaymentIntent) Fail(at time.Time, code, message string) error {
	if err := p.transition(IntentStatusFailed); err != nil {
		return err
	}
	p.FailedAt = &at
	p.Error = &IntentError{Code: code, Message: message}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Clone returns a deep copy that shares no mutable state with p.
func (p *PaymentIntent) Clone() PaymentIntent {
	c := *p
	c.Request.Conditions = slices.Clone(p.Request.Conditions)
	c.Request.Defaulted = slices.Clone(p.Request.Defaulted)
	c.Risk.Factors = slices.Clone(p.Risk.Factors)
	c.Market.Conditions = slices.Clone(p.Market.Conditions)
	c.Transaction = p.Transaction.Clone()
	c.ExecutionStartedAt = cloneTime(p.ExecutionStartedAt)
	c.CompletedAt = cloneTime(p.CompletedAt)
	c.FailedAt = cloneTime(p.FailedAt)
	if p.GasUsed != nil {
		g := *p.GasUsed
		c.GasUsed = &g
	}
	if p.Error != nil {
		e := *p.Error
		c.Error = &e
	}
	return c
}
