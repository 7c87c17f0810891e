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

const expiredDescription = "payment confirmation timed out"

// reconciliationService resolves pending investments from payment outcomes.
// Every transition goes through UpdateIfStatus(pending, ...), so of any number of
// concurrent callbacks and polls for the same payment exactly one wins.
type reconciliationService struct {
	investmentRepo interfaces.InvestmentRepository
	gateway        interfaces.PaymentGateway
	plans          *entities.PlanTable
	eventPublisher interfaces.EventPublisher
	now            func() time.Time
}

// NewReconciliationService creates a new reconciliation service. A nil clock uses time.Now.
func NewReconciliationService(
	investmentRepo interfaces.InvestmentRepository,
	gateway interfaces.PaymentGateway,
	plans *entities.PlanTable,
	eventPublisher interfaces.EventPublisher,
	clock func() time.Time,
) interfaces.ReconciliationService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &reconciliationService{
		investmentRepo: investmentRepo,
		gateway:        gateway,
		plans:          plans,
		eventPublisher: eventPublisher,
		now:            clock,
	}
}

// CreatePending validates the request, stores a pending investment and sends the
// payment prompt
func (s *reconciliationService) CreatePending(ctx context.Context, ownerID string, planAmount int64, phoneNumber string) (*entities.Investment, error) {
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}

	plan, err := s.plans.Lookup(planAmount)
	if err != nil {
		return nil, err
	}

	phone, err := entities.NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return nil, err
	}

	inv := entities.NewPendingInvestment(ownerID, plan, phone, s.now())
	if err := s.investmentRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}

	log.WithFields(log.Fields{
		"investmentID": inv.ID,
		"ownerID":      ownerID,
		"planAmount":   planAmount,
	}).Info("Created pending investment")

	if err := s.eventPublisher.Publish(events.InvestmentCreatedEvent{
		InvestmentID: inv.ID,
		OwnerID:      inv.OwnerID,
		PlanAmount:   inv.PlanAmount(),
		CreatedAt:    inv.CreatedAt,
	}); err != nil {
		log.WithError(err).Error("Failed to publish investment created event")
	}

	return s.initiate(ctx, inv)
}

// RetryInitiation re-sends the payment prompt for a pending record whose first
// attempt never reached the gateway
func (s *reconciliationService) RetryInitiation(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	inv, err := s.investmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	if inv == nil {
		return nil, entities.ErrInvestmentNotFound
	}
	if !inv.IsPending() || inv.HasCorrelation() {
		return inv, nil
	}
	return s.initiate(ctx, inv)
}

// initiate sends the prompt and attaches the gateway's correlation ids. On gateway
// failure the record stays pending and is returned alongside the error.
func (s *reconciliationService) initiate(ctx context.Context, inv *entities.Investment) (*entities.Investment, error) {
	initiation, err := s.gateway.Initiate(ctx, inv.PhoneNumber, inv.PlanAmount())
	if err != nil {
		log.WithFields(log.Fields{
			"investmentID": inv.ID,
			"error":        err,
		}).Warn("Payment initiation failed, investment left pending")
		return inv, fmt.Errorf("failed to initiate payment for investment %s: %w", inv.ID, err)
	}

	upd := entities.InvestmentUpdate{
		CorrelationID: &initiation.CorrelationID,
	}
	if initiation.SecondaryCorrelationID != "" {
		upd.SecondaryCorrelationID = &initiation.SecondaryCorrelationID
	}

	updated, err := s.investmentRepo.UpdateIfStatus(ctx, inv.ID, entities.InvestmentStatusPending, upd)
	if errors.Is(err, entities.ErrStaleState) {
		// Expired by the sweep while the prompt was in flight
		return s.reload(ctx, inv.ID)
	}
	if err != nil {
		return inv, fmt.Errorf("failed to attach correlation id to investment %s: %w", inv.ID, err)
	}

	log.WithFields(log.Fields{
		"investmentID":  updated.ID,
		"correlationID": initiation.CorrelationID,
	}).Info("Payment prompt sent")

	return updated, nil
}

// ApplyCallback applies a payment outcome pushed by the gateway
func (s *reconciliationService) ApplyCallback(ctx context.Context, result entities.SettlementResult) (*entities.Investment, error) {
	inv, err := s.lookup(ctx, result.CorrelationID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, inv, result, events.SourceCallback)
}

// PollStatus asks the gateway for the outcome of a pending payment and applies it.
// Gateway errors are returned as-is and never fail the payment.
func (s *reconciliationService) PollStatus(ctx context.Context, correlationID string) (*entities.Investment, error) {
	inv, err := s.lookup(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	return s.poll(ctx, inv)
}

func (s *reconciliationService) poll(ctx context.Context, inv *entities.Investment) (*entities.Investment, error) {
	if !inv.IsPending() || !inv.HasCorrelation() {
		return inv, nil
	}

	status, err := s.gateway.QueryStatus(ctx, *inv.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment status for investment %s: %w", inv.ID, err)
	}

	return s.resolve(ctx, inv, entities.FromStatus(status), events.SourcePoll)
}

// resolve performs the pending -> active | failed transition. Anything not pending is
// returned untouched.
func (s *reconciliationService) resolve(ctx context.Context, inv *entities.Investment, result entities.SettlementResult, source string) (*entities.Investment, error) {
	if !inv.IsPending() {
		fields := log.Fields{
			"investmentID": inv.ID,
			"status":       inv.Status,
			"source":       source,
		}
		// money was taken for a record that already expired
		if result.IsSuccess() && inv.Status == entities.InvestmentStatusFailed {
			fields["correlationID"] = result.CorrelationID
			fields["receipt"] = result.ExternalReceipt
			fields["amount"] = result.Amount
			log.WithFields(fields).Warn("Payment succeeded after investment was failed, refund required")
			return inv, nil
		}
		log.WithFields(fields).Debug("Ignoring settlement for investment that is no longer pending")
		return inv, nil
	}

	now := s.now()
	code := result.ResultCode
	upd := entities.InvestmentUpdate{
		ResultCode: &code,
	}
	if result.ResultDescription != "" {
		upd.ResultDescription = &result.ResultDescription
	}
	if result.SecondaryCorrelationID != "" {
		upd.SecondaryCorrelationID = &result.SecondaryCorrelationID
	}

	if result.IsSuccess() {
		bonus := inv.Plan.ActivationBonus
		settledAt := now
		if result.TransactionDate != nil {
			settledAt = *result.TransactionDate
		}
		upd.Status = entities.StatusPtr(entities.InvestmentStatusActive)
		upd.AccruedReturns = &bonus
		upd.LastAccrualAt = &now
		upd.ActivatedAt = &now
		upd.SettledAt = &settledAt
		if result.ExternalReceipt != "" {
			upd.ExternalReceipt = &result.ExternalReceipt
		}
	} else {
		upd.Status = entities.StatusPtr(entities.InvestmentStatusFailed)
	}

	updated, err := s.investmentRepo.UpdateIfStatus(ctx, inv.ID, entities.InvestmentStatusPending, upd)
	if errors.Is(err, entities.ErrStaleState) {
		log.WithFields(log.Fields{
			"investmentID": inv.ID,
			"source":       source,
		}).Debug("Investment resolved concurrently, settlement is a no-op")
		return s.reload(ctx, inv.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve investment %s: %w", inv.ID, err)
	}

	s.publishResolution(updated, source)
	return updated, nil
}

// ReconcilePending is the sweep for payments whose callback never arrived. Records older
// than pollAfter are polled once. Records older than expireAfter whose outcome could not
// be learned are failed, unless the gateway was unreachable or still processing.
func (s *reconciliationService) ReconcilePending(ctx context.Context, pollAfter, expireAfter time.Duration) (*entities.ReconciliationSummary, error) {
	now := s.now()
	pending, err := s.investmentRepo.ListPendingCreatedBefore(ctx, now.Add(-pollAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending investments: %w", err)
	}

	summary := &entities.ReconciliationSummary{}
	for _, inv := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++

		current := inv
		canExpire := true
		if inv.HasCorrelation() {
			polled, err := s.poll(ctx, inv)
			switch {
			case err == nil:
				current = polled
			case entities.IsRetryable(err):
				canExpire = false
			default:
				summary.Errors++
				log.WithFields(log.Fields{
					"investmentID": inv.ID,
					"error":        err,
				}).Warn("Failed to poll pending investment")
			}
		}

		switch {
		case current.Status == entities.InvestmentStatusActive:
			summary.Activated++
			continue
		case current.Status == entities.InvestmentStatusFailed:
			summary.Failed++
			continue
		case !current.IsPending():
			continue
		}

		if canExpire && now.Sub(current.CreatedAt) >= expireAfter {
			if s.expire(ctx, current) {
				summary.Expired++
				continue
			}
		}
		summary.StillOpen++
	}

	if summary.Scanned > 0 {
		log.WithFields(log.Fields{
			"scanned":   summary.Scanned,
			"activated": summary.Activated,
			"failed":    summary.Failed,
			"expired":   summary.Expired,
			"open":      summary.StillOpen,
			"errors":    summary.Errors,
		}).Info("Pending payment sweep finished")
	}

	return summary, nil
}

func (s *reconciliationService) expire(ctx context.Context, inv *entities.Investment) bool {
	desc := expiredDescription
	updated, err := s.investmentRepo.UpdateIfStatus(ctx, inv.ID, entities.InvestmentStatusPending, entities.InvestmentUpdate{
		Status:            entities.StatusPtr(entities.InvestmentStatusFailed),
		ResultDescription: &desc,
	})
	if err != nil {
		if !errors.Is(err, entities.ErrStaleState) {
			log.WithFields(log.Fields{
				"investmentID": inv.ID,
				"error":        err,
			}).Error("Failed to expire pending investment")
		}
		return false
	}

	log.WithFields(log.Fields{
		"investmentID": updated.ID,
		"ownerID":      updated.OwnerID,
		"age":          s.now().Sub(updated.CreatedAt).String(),
	}).Info("Expired pending investment")

	s.publishResolution(updated, events.SourceExpiry)
	return true
}

func (s *reconciliationService) publishResolution(inv *entities.Investment, source string) {
	var event events.Event
	switch inv.Status {
	case entities.InvestmentStatusActive:
		log.WithFields(log.Fields{
			"investmentID": inv.ID,
			"ownerID":      inv.OwnerID,
			"source":       source,
		}).Info("Investment activated")
		activated := events.InvestmentActivatedEvent{
			InvestmentID: inv.ID,
			OwnerID:      inv.OwnerID,
			PlanAmount:   inv.PlanAmount(),
			Source:       source,
		}
		if inv.CorrelationID != nil {
			activated.CorrelationID = *inv.CorrelationID
		}
		if inv.ExternalReceipt != nil {
			activated.ExternalReceipt = *inv.ExternalReceipt
		}
		if inv.ActivatedAt != nil {
			activated.ActivatedAt = *inv.ActivatedAt
		}
		event = activated
	case entities.InvestmentStatusFailed:
		failed := events.InvestmentFailedEvent{
			InvestmentID: inv.ID,
			OwnerID:      inv.OwnerID,
			ResultCode:   inv.ResultCode,
			Source:       source,
		}
		if inv.CorrelationID != nil {
			failed.CorrelationID = *inv.CorrelationID
		}
		if inv.ResultDescription != nil {
			failed.ResultDescription = *inv.ResultDescription
		}
		log.WithFields(log.Fields{
			"investmentID": inv.ID,
			"ownerID":      inv.OwnerID,
			"source":       source,
			"reason":       failed.ResultDescription,
		}).Info("Investment failed")
		event = failed
	default:
		return
	}

	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish investment resolution event")
	}
}

func (s *reconciliationService) lookup(ctx context.Context, correlationID string) (*entities.Investment, error) {
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

func (s *reconciliationService) reload(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	current, err := s.investmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload investment %s: %w", id, err)
	}
	if current == nil {
		return nil, entities.ErrInvestmentNotFound
	}
	return current, nil
}
