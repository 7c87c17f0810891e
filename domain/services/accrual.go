package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investor/domain/entities"
	"investor/domain/events"
	"investor/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ComputeAccrual evaluates what inv is owed at now. It depends only on the record's
// creation time and plan, so evaluating the same instant twice gives the same answer
// and any number of missed evaluations is caught up by the next one.
func ComputeAccrual(inv *entities.Investment, now time.Time) entities.Accrual {
	elapsed := now.Sub(inv.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	acc := entities.Accrual{
		Minutes:     int64(elapsed / time.Minute),
		ElapsedDays: elapsed.Hours() / 24,
	}

	if elapsed > inv.Plan.CycleDuration() {
		acc.CycleCompleted = true
		acc.Expected = inv.Plan.FinalReturns()
		return acc
	}

	acc.Expected = inv.Plan.ReturnsAfter(acc.Minutes)
	return acc
}

// accrualService writes accrual results through the store's conditional update
type accrualService struct {
	investmentRepo interfaces.InvestmentRepository
	eventPublisher interfaces.EventPublisher
}

// NewAccrualService creates a new accrual service
func NewAccrualService(
	investmentRepo interfaces.InvestmentRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.AccrualService {
	return &accrualService{
		investmentRepo: investmentRepo,
		eventPublisher: eventPublisher,
	}
}

// Accrue brings an active investment up to date. Records in any other status are
// returned unchanged.
func (s *accrualService) Accrue(ctx context.Context, inv *entities.Investment, now time.Time) (*entities.Investment, error) {
	if inv == nil {
		return nil, entities.ErrInvestmentNotFound
	}
	if !inv.IsActive() {
		return inv, nil
	}

	acc := ComputeAccrual(inv, now)

	if acc.CycleCompleted {
		return s.complete(ctx, inv, acc, now)
	}

	if acc.Expected <= inv.AccruedReturns {
		return inv, nil
	}

	updated, err := s.investmentRepo.UpdateIfStatus(ctx, inv.ID, entities.InvestmentStatusActive, entities.InvestmentUpdate{
		AccruedReturns: &acc.Expected,
		LastAccrualAt:  &now,
	})
	if errors.Is(err, entities.ErrStaleState) {
		return s.reload(ctx, inv.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to accrue returns for investment %s: %w", inv.ID, err)
	}

	s.publishAccrued(inv, updated, acc)
	return updated, nil
}

// AccrueByID loads the record and accrues it
func (s *accrualService) AccrueByID(ctx context.Context, id uuid.UUID, now time.Time) (*entities.Investment, error) {
	inv, err := s.investmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	if inv == nil {
		return nil, entities.ErrInvestmentNotFound
	}
	return s.Accrue(ctx, inv, now)
}

func (s *accrualService) complete(ctx context.Context, inv *entities.Investment, acc entities.Accrual, now time.Time) (*entities.Investment, error) {
	updated, err := s.investmentRepo.UpdateIfStatus(ctx, inv.ID, entities.InvestmentStatusActive, entities.InvestmentUpdate{
		Status:         entities.StatusPtr(entities.InvestmentStatusCompleted),
		AccruedReturns: &acc.Expected,
		LastAccrualAt:  &now,
		CompletedAt:    &now,
	})
	if errors.Is(err, entities.ErrStaleState) {
		// Another caller completed it first
		return s.reload(ctx, inv.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete investment %s: %w", inv.ID, err)
	}

	log.WithFields(log.Fields{
		"investmentID": updated.ID,
		"ownerID":      updated.OwnerID,
		"finalReturns": updated.AccruedReturns,
	}).Info("Investment cycle completed")

	s.publishAccrued(inv, updated, acc)
	if err := s.eventPublisher.Publish(events.InvestmentCompletedEvent{
		InvestmentID: updated.ID,
		OwnerID:      updated.OwnerID,
		PlanAmount:   updated.PlanAmount(),
		FinalReturns: updated.AccruedReturns,
		CompletedAt:  now,
	}); err != nil {
		log.WithError(err).Error("Failed to publish investment completed event")
	}

	return updated, nil
}

func (s *accrualService) publishAccrued(before, after *entities.Investment, acc entities.Accrual) {
	if after.AccruedReturns <= before.AccruedReturns {
		return
	}
	if err := s.eventPublisher.Publish(events.ReturnsAccruedEvent{
		InvestmentID:   after.ID,
		OwnerID:        after.OwnerID,
		OldReturns:     before.AccruedReturns,
		NewReturns:     after.AccruedReturns,
		ElapsedMinutes: acc.Minutes,
	}); err != nil {
		log.WithError(err).Error("Failed to publish returns accrued event")
	}
}

func (s *accrualService) reload(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	current, err := s.investmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload investment %s: %w", id, err)
	}
	if current == nil {
		return nil, entities.ErrInvestmentNotFound
	}
	return current, nil
}
