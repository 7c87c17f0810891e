package cmd

import (
	"context"
	"fmt"
	"time"

	"investor/application"
	"investor/config"
	"investor/server"

	log "github.com/sirupsen/logrus"
)

// Run starts the HTTP API and the background workers and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	log.Info("Starting investor service...")

	cfg := config.Get()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.close(shutdownCtx)
		log.Info("Shutdown completed")
	}()

	scheduler := application.NewScheduler(
		application.Job{
			Name:     "accrual",
			Interval: cfg.AccrualInterval,
			Run: func(ctx context.Context) error {
				_, err := a.accrualWorker.RunTick(ctx)
				return err
			},
		},
		application.Job{
			Name:     "reconciliation",
			Interval: cfg.ReconcileInterval,
			Run: func(ctx context.Context) error {
				_, err := a.reconciliationWorker.RunSweep(ctx)
				return err
			},
		},
	)
	stopScheduler, err := scheduler.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer stopScheduler()

	router := server.NewRouter(
		server.NewInvestmentHandler(a.reconciliation, a.investments),
		server.NewCallbackHandler(a.reconciliation),
		func(ctx context.Context) error { return a.db.Ping(ctx) },
	)

	log.WithField("environment", cfg.Environment).Info("Investor service is running")
	return server.New(cfg.HTTPPort, router).Run(ctx)
}
