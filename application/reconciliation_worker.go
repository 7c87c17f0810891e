package application

import (
	"context"
	"fmt"
	"time"

	"investor/domain/entities"
	"investor/domain/interfaces"
	"investor/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// ReconciliationWorker resolves pending payments whose callback never arrived
type ReconciliationWorker struct {
	reconciliationService interfaces.ReconciliationService
	metrics               *observability.MetricsProvider
	pollAfter             time.Duration
	expireAfter           time.Duration
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(
	reconciliationService interfaces.ReconciliationService,
	metrics *observability.MetricsProvider,
	pollAfter, expireAfter time.Duration,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		reconciliationService: reconciliationService,
		metrics:               metrics,
		pollAfter:             pollAfter,
		expireAfter:           expireAfter,
	}
}

// RunSweep polls stale pending payments and expires the ones that never resolved
func (w *ReconciliationWorker) RunSweep(ctx context.Context) (*entities.ReconciliationSummary, error) {
	summary, err := w.reconciliationService.ReconcilePending(ctx, w.pollAfter, w.expireAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile pending investments: %w", err)
	}

	w.metrics.RecordReconcileOutcome(observability.OutcomeActivated, summary.Activated)
	w.metrics.RecordReconcileOutcome(observability.OutcomeFailed, summary.Failed)
	w.metrics.RecordReconcileOutcome(observability.OutcomeExpired, summary.Expired)
	w.metrics.RecordReconcileOutcome(observability.OutcomeOpen, summary.StillOpen)
	w.metrics.RecordReconcileOutcome(observability.OutcomeError, summary.Errors)

	if summary.Scanned > 0 {
		log.WithFields(log.Fields{
			"scanned":    summary.Scanned,
			"activated":  summary.Activated,
			"failed":     summary.Failed,
			"expired":    summary.Expired,
			"still_open": summary.StillOpen,
			"errors":     summary.Errors,
		}).Info("Reconciliation sweep finished")
	}
	return summary, nil
}
