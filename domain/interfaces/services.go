package interfaces

import (
	"context"
	"time"

	"investor/domain/entities"

	"github.com/google/uuid"
)

// PaymentGateway is the mobile-money provider used to collect deposits
type PaymentGateway interface {
	// Initiate sends a payment prompt to the customer's phone
	Initiate(ctx context.Context, phoneNumber string, amount int64) (*entities.PaymentInitiation, error)

	// QueryStatus asks the gateway for the outcome of a prompt. It has no side effects.
	QueryStatus(ctx context.Context, correlationID string) (*entities.SettlementStatus, error)
}

// AccrualService raises accrued returns on active investments
type AccrualService interface {
	// Accrue brings inv up to date as of now and returns the stored result.
	// Safe to call concurrently and repeatedly for the same record.
	Accrue(ctx context.Context, inv *entities.Investment, now time.Time) (*entities.Investment, error)

	// AccrueByID loads the record and accrues it
	AccrueByID(ctx context.Context, id uuid.UUID, now time.Time) (*entities.Investment, error)
}

// ReconciliationService moves investments out of pending based on payment outcomes
type ReconciliationService interface {
	// CreatePending validates the request, writes a pending record and sends the payment
	// prompt. If the prompt fails the pending record is still returned with the error.
	CreatePending(ctx context.Context, ownerID string, planAmount int64, phoneNumber string) (*entities.Investment, error)

	// RetryInitiation re-sends the prompt for a pending record that never got one
	RetryInitiation(ctx context.Context, id uuid.UUID) (*entities.Investment, error)

	// ApplyCallback applies a gateway-delivered outcome
	ApplyCallback(ctx context.Context, result entities.SettlementResult) (*entities.Investment, error)

	// PollStatus queries the gateway for a pending record's outcome and applies it
	PollStatus(ctx context.Context, correlationID string) (*entities.Investment, error)

	// ReconcilePending polls pending records older than pollAfter and fails those older
	// than expireAfter that are still unresolved
	ReconcilePending(ctx context.Context, pollAfter, expireAfter time.Duration) (*entities.ReconciliationSummary, error)
}

// InvestmentService is the read side used by the HTTP layer
type InvestmentService interface {
	// Get returns the record, accrued up to now if active
	Get(ctx context.Context, id uuid.UUID) (*entities.Investment, error)

	// GetByCorrelationID returns the record holding the gateway checkout id without
	// contacting the gateway
	GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error)

	// ListByOwner returns the owner's records, accruing active ones first
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error)

	// Stats aggregates the owner's records
	Stats(ctx context.Context, ownerID string) (*entities.InvestmentStats, error)

	// Plans returns the plans currently offered
	Plans() []entities.Plan
}
