package services

import (
	"context"
	"fmt"
	"time"

	"investor/domain/entities"
	"investor/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// investmentService serves reads. Active records are accrued before they are returned
// so callers never see a stale balance between scheduler ticks.
type investmentService struct {
	investmentRepo interfaces.InvestmentRepository
	accrualService interfaces.AccrualService
	plans          *entities.PlanTable
	now            func() time.Time
}

// NewInvestmentService creates a new investment service. A nil clock uses time.Now.
func NewInvestmentService(
	investmentRepo interfaces.InvestmentRepository,
	accrualService interfaces.AccrualService,
	plans *entities.PlanTable,
	clock func() time.Time,
) interfaces.InvestmentService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &investmentService{
		investmentRepo: investmentRepo,
		accrualService: accrualService,
		plans:          plans,
		now:            clock,
	}
}

// Get returns a single investment, accrued up to now
func (s *investmentService) Get(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	inv, err := s.investmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	if inv == nil {
		return nil, entities.ErrInvestmentNotFound
	}
	return s.accrueForRead(ctx, inv), nil
}

// GetByCorrelationID returns the investment a checkout request belongs to
func (s *investmentService) GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error) {
	if correlationID == "" {
		return nil, entities.ErrUnknownCorrelation
	}
	inv, err := s.investmentRepo.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get investment by correlation id: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", entities.ErrUnknownCorrelation, correlationID)
	}
	return inv, nil
}

// ListByOwner returns the owner's investments newest first, accruing active ones
func (s *investmentService) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error) {
	investments, err := s.investmentRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	for i, inv := range investments {
		investments[i] = s.accrueForRead(ctx, inv)
	}
	return investments, nil
}

// Stats summarizes the owner's investments. Projected returns are what active
// investments will still earn before their cycles complete.
func (s *investmentService) Stats(ctx context.Context, ownerID string) (*entities.InvestmentStats, error) {
	investments, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	stats := &entities.InvestmentStats{}
	for _, inv := range investments {
		switch inv.Status {
		case entities.InvestmentStatusPending:
			stats.PendingCount++
			continue
		case entities.InvestmentStatusFailed:
			stats.FailedCount++
			continue
		case entities.InvestmentStatusActive:
			stats.ActiveCount++
			if remaining := inv.Plan.FinalReturns() - inv.AccruedReturns; remaining > 0 {
				stats.ProjectedReturns += remaining
			}
		case entities.InvestmentStatusCompleted:
			stats.CompletedCount++
		}
		stats.TotalInvested += inv.PlanAmount()
		stats.TotalReturns += inv.AccruedReturns
	}
	return stats, nil
}

// Plans returns the plans currently offered
func (s *investmentService) Plans() []entities.Plan {
	return s.plans.All()
}

// accrueForRead falls back to the stored record if accrual fails, the scheduler
// will catch it up on its next tick
func (s *investmentService) accrueForRead(ctx context.Context, inv *entities.Investment) *entities.Investment {
	if !inv.IsActive() {
		return inv
	}
	updated, err := s.accrualService.Accrue(ctx, inv, s.now())
	if err != nil {
		log.WithFields(log.Fields{
			"investmentID": inv.ID,
			"error":        err,
		}).Warn("Failed to accrue investment on read")
		return inv
	}
	return updated
}
