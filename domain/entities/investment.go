package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InvestmentStatus represents where an investment is in its lifecycle
type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusFailed    InvestmentStatus = "failed"
	InvestmentStatusCompleted InvestmentStatus = "completed"
)

// IsValid returns true for the four known statuses
func (s InvestmentStatus) IsValid() bool {
	switch s {
	case InvestmentStatusPending, InvestmentStatusActive, InvestmentStatusFailed, InvestmentStatusCompleted:
		return true
	}
	return false
}

// IsTerminal returns true once no further transition is possible
func (s InvestmentStatus) IsTerminal() bool {
	return s == InvestmentStatusFailed || s == InvestmentStatusCompleted
}

// CanTransitionTo reports whether from -> to is an edge of the lifecycle:
// pending -> active | failed, active -> completed.
func (s InvestmentStatus) CanTransitionTo(to InvestmentStatus) bool {
	switch s {
	case InvestmentStatusPending:
		return to == InvestmentStatusActive || to == InvestmentStatusFailed
	case InvestmentStatusActive:
		return to == InvestmentStatusCompleted
	}
	return false
}

// Investment is a single deposit and the returns owed on it
type Investment struct {
	ID      uuid.UUID `db:"id"`
	OwnerID string    `db:"owner_id"`

	// Plan terms are copied from the plan table at creation and never change afterwards
	Plan Plan

	Status         InvestmentStatus `db:"status"`
	AccruedReturns int64            `db:"accrued_returns"`
	CreatedAt      time.Time        `db:"created_at"`
	LastAccrualAt  time.Time        `db:"last_accrual_at"`

	PhoneNumber            string  `db:"phone_number"`
	CorrelationID          *string `db:"correlation_id"`           // CheckoutRequestID, NULL until initiated
	SecondaryCorrelationID *string `db:"secondary_correlation_id"` // MerchantRequestID
	ExternalReceipt        *string `db:"external_receipt"`         // set only on successful settlement
	ResultCode             *int    `db:"result_code"`
	ResultDescription      *string `db:"result_description"`

	SettledAt   *time.Time `db:"settled_at"`
	ActivatedAt *time.Time `db:"activated_at"`
	CompletedAt *time.Time `db:"completed_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// NewPendingInvestment builds the initial record for a deposit that has not been paid yet
func NewPendingInvestment(ownerID string, plan Plan, phoneNumber string, now time.Time) *Investment {
	return &Investment{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Plan:          plan,
		Status:        InvestmentStatusPending,
		CreatedAt:     now,
		LastAccrualAt: now,
		PhoneNumber:   phoneNumber,
		UpdatedAt:     now,
	}
}

// IsPending returns true while the deposit is awaiting confirmation
func (i *Investment) IsPending() bool {
	return i.Status == InvestmentStatusPending
}

// IsActive returns true while returns are accruing
func (i *Investment) IsActive() bool {
	return i.Status == InvestmentStatusActive
}

func (i *Investment) IsTerminal() bool {
	return i.Status.IsTerminal()
}

// HasCorrelation returns true once the payment prompt has been issued
func (i *Investment) HasCorrelation() bool {
	return i.CorrelationID != nil && *i.CorrelationID != ""
}

// PlanAmount is the principal deposited
func (i *Investment) PlanAmount() int64 {
	return i.Plan.Amount
}

// CycleEndsAt is the instant after which the investment completes
func (i *Investment) CycleEndsAt() time.Time {
	return i.CreatedAt.Add(i.Plan.CycleDuration())
}

// Clone returns a deep copy so callers can mutate without aliasing pointer fields
func (i *Investment) Clone() *Investment {
	c := *i
	c.CorrelationID = cloneString(i.CorrelationID)
	c.SecondaryCorrelationID = cloneString(i.SecondaryCorrelationID)
	c.ExternalReceipt = cloneString(i.ExternalReceipt)
	c.ResultDescription = cloneString(i.ResultDescription)
	c.SettledAt = cloneTime(i.SettledAt)
	c.ActivatedAt = cloneTime(i.ActivatedAt)
	c.CompletedAt = cloneTime(i.CompletedAt)
	if i.ResultCode != nil {
		code := *i.ResultCode
		c.ResultCode = &code
	}
	return &c
}

// InvestmentUpdate describes one conditional mutation. Nil fields are left untouched.
//
// The store applies every field with the same rules, whether in SQL or in memory:
// AccruedReturns and LastAccrualAt only ever move forward, and the correlation ids,
// receipt, result and audit timestamps can be written once and are kept thereafter.
type InvestmentUpdate struct {
	Status                 *InvestmentStatus
	AccruedReturns         *int64
	LastAccrualAt          *time.Time
	CorrelationID          *string
	SecondaryCorrelationID *string
	ExternalReceipt        *string
	ResultCode             *int
	ResultDescription      *string
	SettledAt              *time.Time
	ActivatedAt            *time.Time
	CompletedAt            *time.Time
}

// Validate checks that the update can legally be applied to a record in status from
func (u InvestmentUpdate) Validate(from InvestmentStatus) error {
	if u.Status != nil && *u.Status != from && !from.CanTransitionTo(*u.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, *u.Status)
	}
	if u.AccruedReturns != nil && *u.AccruedReturns < 0 {
		return fmt.Errorf("accrued returns cannot be negative: %d", *u.AccruedReturns)
	}
	return nil
}

// ApplyTo returns a copy of inv with the update applied
func (u InvestmentUpdate) ApplyTo(inv *Investment, now time.Time) *Investment {
	out := inv.Clone()
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.AccruedReturns != nil && *u.AccruedReturns > out.AccruedReturns {
		out.AccruedReturns = *u.AccruedReturns
	}
	if u.LastAccrualAt != nil && u.LastAccrualAt.After(out.LastAccrualAt) {
		out.LastAccrualAt = *u.LastAccrualAt
	}
	out.CorrelationID = coalesceString(out.CorrelationID, u.CorrelationID)
	out.SecondaryCorrelationID = coalesceString(out.SecondaryCorrelationID, u.SecondaryCorrelationID)
	out.ExternalReceipt = coalesceString(out.ExternalReceipt, u.ExternalReceipt)
	out.ResultDescription = coalesceString(out.ResultDescription, u.ResultDescription)
	if out.ResultCode == nil && u.ResultCode != nil {
		code := *u.ResultCode
		out.ResultCode = &code
	}
	out.SettledAt = coalesceTime(out.SettledAt, u.SettledAt)
	out.ActivatedAt = coalesceTime(out.ActivatedAt, u.ActivatedAt)
	out.CompletedAt = coalesceTime(out.CompletedAt, u.CompletedAt)
	out.UpdatedAt = now
	return out
}

// StatusPtr is a small helper for building updates
func StatusPtr(s InvestmentStatus) *InvestmentStatus { return &s }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func coalesceString(current, next *string) *string {
	if current != nil || next == nil {
		return current
	}
	return cloneString(next)
}

func coalesceTime(current, next *time.Time) *time.Time {
	if current != nil || next == nil {
		return current
	}
	return cloneTime(next)
}
