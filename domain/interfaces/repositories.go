package interfaces

import (
	"context"
	"time"

	"investor/domain/entities"
	"investor/domain/events"

	"github.com/google/uuid"
)

// InvestmentRepository defines the interface for investment record storage
type InvestmentRepository interface {
	// Create inserts a new record. Returns entities.ErrDuplicateCorrelation when an
	// open (pending or active) record already holds the same correlation id.
	Create(ctx context.Context, inv *entities.Investment) error

	// GetByID returns nil, nil when the record does not exist
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error)

	// GetByCorrelationID prefers an open record when several share the id
	GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error)

	// ListByOwner returns an owner's records, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error)

	// ListByStatus returns every record in the given status
	ListByStatus(ctx context.Context, status entities.InvestmentStatus) ([]*entities.Investment, error)

	// ListPendingCreatedBefore returns pending records created before the cutoff, oldest first
	ListPendingCreatedBefore(ctx context.Context, before time.Time) ([]*entities.Investment, error)

	// UpdateIfStatus applies upd only if the record is still in status expected and returns
	// the updated record. Returns entities.ErrStaleState when the status no longer matches.
	// This is the only way a stored record changes.
	UpdateIfStatus(ctx context.Context, id uuid.UUID, expected entities.InvestmentStatus, upd entities.InvestmentUpdate) (*entities.Investment, error)
}

// AccrualRunRepository defines the interface for the accrual run audit log
type AccrualRunRepository interface {
	// Create records a completed run
	Create(ctx context.Context, run *entities.AccrualRun) error

	// GetLatest returns the most recent run, nil if none
	GetLatest(ctx context.Context) (*entities.AccrualRun, error)

	// ListSince returns runs started at or after since, newest first
	ListSince(ctx context.Context, since time.Time, limit int) ([]*entities.AccrualRun, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}
