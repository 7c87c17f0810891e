package cmd

import (
	"context"

	"investor/config"

	log "github.com/sirupsen/logrus"
)

// RunAccrual performs a single accrual pass and exits
func RunAccrual(ctx context.Context) error {
	a, err := newApp(ctx, config.Get(), false)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	run, err := a.accrualWorker.RunTick(ctx)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"scanned":   run.InvestmentsScanned,
		"accrued":   run.InvestmentsAccrued,
		"completed": run.InvestmentsCompleted,
		"failed":    run.InvestmentsFailed,
		"returns":   run.TotalReturnsAccrued,
	}).Info("Accrual pass complete")
	return nil
}

// RunReconcile performs a single pending-payment sweep and exits
func RunReconcile(ctx context.Context) error {
	a, err := newApp(ctx, config.Get(), false)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	summary, err := a.reconciliationWorker.RunSweep(ctx)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"scanned":    summary.Scanned,
		"activated":  summary.Activated,
		"failed":     summary.Failed,
		"expired":    summary.Expired,
		"still_open": summary.StillOpen,
		"errors":     summary.Errors,
	}).Info("Reconciliation sweep complete")
	return nil
}
