package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeInvestmentCreated   EventType = "investment_created"
	EventTypeInvestmentActivated EventType = "investment_activated"
	EventTypeInvestmentFailed    EventType = "investment_failed"
	EventTypeReturnsAccrued      EventType = "returns_accrued"
	EventTypeInvestmentCompleted EventType = "investment_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// InvestmentCreatedEvent is raised when a pending record is written
type InvestmentCreatedEvent struct {
	InvestmentID uuid.UUID `json:"investment_id"`
	OwnerID      string    `json:"owner_id"`
	PlanAmount   int64     `json:"plan_amount"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e InvestmentCreatedEvent) Type() EventType {
	return EventTypeInvestmentCreated
}

// InvestmentActivatedEvent is raised on the pending -> active transition
type InvestmentActivatedEvent struct {
	InvestmentID    uuid.UUID `json:"investment_id"`
	OwnerID         string    `json:"owner_id"`
	PlanAmount      int64     `json:"plan_amount"`
	CorrelationID   string    `json:"correlation_id"`
	ExternalReceipt string    `json:"external_receipt,omitempty"`
	ActivatedAt     time.Time `json:"activated_at"`
	// Source is "callback" or "poll"
	Source string `json:"source"`
}

func (e InvestmentActivatedEvent) Type() EventType {
	return EventTypeInvestmentActivated
}

// InvestmentFailedEvent is raised on the pending -> failed transition
type InvestmentFailedEvent struct {
	InvestmentID      uuid.UUID `json:"investment_id"`
	OwnerID           string    `json:"owner_id"`
	CorrelationID     string    `json:"correlation_id,omitempty"`
	ResultCode        *int      `json:"result_code,omitempty"`
	ResultDescription string    `json:"result_description"`
	Source            string    `json:"source"`
}

func (e InvestmentFailedEvent) Type() EventType {
	return EventTypeInvestmentFailed
}

// ReturnsAccruedEvent is raised when accrued returns were raised
type ReturnsAccruedEvent struct {
	InvestmentID   uuid.UUID `json:"investment_id"`
	OwnerID        string    `json:"owner_id"`
	OldReturns     int64     `json:"old_returns"`
	NewReturns     int64     `json:"new_returns"`
	ElapsedMinutes int64     `json:"elapsed_minutes"`
}

func (e ReturnsAccruedEvent) Type() EventType {
	return EventTypeReturnsAccrued
}

// Delta is the amount credited by this accrual
func (e ReturnsAccruedEvent) Delta() int64 {
	return e.NewReturns - e.OldReturns
}

// InvestmentCompletedEvent is raised on the active -> completed transition
type InvestmentCompletedEvent struct {
	InvestmentID uuid.UUID `json:"investment_id"`
	OwnerID      string    `json:"owner_id"`
	PlanAmount   int64     `json:"plan_amount"`
	FinalReturns int64     `json:"final_returns"`
	CompletedAt  time.Time `json:"completed_at"`
}

func (e InvestmentCompletedEvent) Type() EventType {
	return EventTypeInvestmentCompleted
}

// Event sources
const (
	SourceCallback = "callback"
	SourcePoll     = "poll"
	SourceExpiry   = "expiry"
)
