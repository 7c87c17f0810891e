package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"investor/domain/entities"
	"investor/domain/interfaces"
	"investor/infrastructure/observability"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AccrualWorker brings every active investment up to date once per tick
type AccrualWorker struct {
	investmentRepo interfaces.InvestmentRepository
	runRepo        interfaces.AccrualRunRepository
	accrualService interfaces.AccrualService
	metrics        *observability.MetricsProvider

	concurrency   int
	recordTimeout time.Duration
	now           func() time.Time
}

// NewAccrualWorker creates a new accrual worker. runRepo and metrics may be nil.
func NewAccrualWorker(
	investmentRepo interfaces.InvestmentRepository,
	runRepo interfaces.AccrualRunRepository,
	accrualService interfaces.AccrualService,
	metrics *observability.MetricsProvider,
	concurrency int,
	recordTimeout time.Duration,
	now func() time.Time,
) *AccrualWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AccrualWorker{
		investmentRepo: investmentRepo,
		runRepo:        runRepo,
		accrualService: accrualService,
		metrics:        metrics,
		concurrency:    concurrency,
		recordTimeout:  recordTimeout,
		now:            now,
	}
}

type tickTally struct {
	mu        sync.Mutex
	accrued   int
	completed int
	failed    int
	total     int64
}

// RunTick accrues all active investments as of a single instant. A record that
// fails is logged and counted; it does not stop the others.
func (w *AccrualWorker) RunTick(ctx context.Context) (*entities.AccrualRun, error) {
	startedAt := w.now()

	active, err := w.investmentRepo.ListByStatus(ctx, entities.InvestmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active investments: %w", err)
	}

	var tally tickTally
	var g errgroup.Group
	g.SetLimit(w.concurrency)

	for _, inv := range active {
		g.Go(func() error {
			w.accrueOne(ctx, inv, startedAt, &tally)
			return nil
		})
	}
	_ = g.Wait()

	run := &entities.AccrualRun{
		StartedAt:            startedAt,
		FinishedAt:           w.now(),
		InvestmentsScanned:   len(active),
		InvestmentsAccrued:   tally.accrued,
		InvestmentsCompleted: tally.completed,
		InvestmentsFailed:    tally.failed,
		TotalReturnsAccrued:  tally.total,
		ExecutionSummary: map[string]interface{}{
			"concurrency":       w.concurrency,
			"record_timeout_ms": w.recordTimeout.Milliseconds(),
		},
	}
	w.metrics.RecordAccrualRun(run.Duration())

	if w.runRepo != nil {
		if err := w.runRepo.Create(ctx, run); err != nil {
			log.WithError(err).Error("Failed to record accrual run")
		}
	}

	if run.InvestmentsScanned > 0 {
		log.WithFields(log.Fields{
			"scanned":   run.InvestmentsScanned,
			"accrued":   run.InvestmentsAccrued,
			"completed": run.InvestmentsCompleted,
			"failed":    run.InvestmentsFailed,
			"returns":   run.TotalReturnsAccrued,
			"duration":  run.Duration(),
		}).Info("Accrual tick finished")
	}
	return run, nil
}

func (w *AccrualWorker) accrueOne(ctx context.Context, inv *entities.Investment, now time.Time, tally *tickTally) {
	recordCtx := ctx
	if w.recordTimeout > 0 {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(ctx, w.recordTimeout)
		defer cancel()
	}

	updated, err := w.accrualService.Accrue(recordCtx, inv, now)

	tally.mu.Lock()
	defer tally.mu.Unlock()

	if err != nil {
		tally.failed++
		log.WithFields(log.Fields{
			"investment_id": inv.ID,
			"error":         err,
		}).Error("Failed to accrue investment")
		return
	}

	if delta := updated.AccruedReturns - inv.AccruedReturns; delta > 0 {
		tally.accrued++
		tally.total += delta
	}
	if updated.Status == entities.InvestmentStatusCompleted {
		tally.completed++
	}
}
