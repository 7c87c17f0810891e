package cmd

import (
	"context"
	"fmt"

	"investor/application"
	"investor/config"
	"investor/database"
	"investor/domain/entities"
	"investor/domain/interfaces"
	"investor/domain/services"
	"investor/infrastructure"
	"investor/infrastructure/mpesa"
	"investor/infrastructure/observability"
	"investor/repository"

	log "github.com/sirupsen/logrus"
)

// app holds the wired dependencies shared by the server and the one-shot commands
type app struct {
	cfg     *config.Config
	db      *database.DB
	nats    *infrastructure.NATSClient
	metrics *observability.MetricsProvider

	publisher      interfaces.EventPublisher
	investmentRepo interfaces.InvestmentRepository
	accrualRunRepo interfaces.AccrualRunRepository

	accrual        interfaces.AccrualService
	reconciliation interfaces.ReconciliationService
	investments    interfaces.InvestmentService

	accrualWorker        *application.AccrualWorker
	reconciliationWorker *application.ReconciliationWorker
}

// newApp connects to the database and the optional event bus and builds the services.
// localEvents routes published events to in-process handlers even without NATS.
func newApp(ctx context.Context, cfg *config.Config, localEvents bool) (*app, error) {
	a := &app{cfg: cfg}

	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		return nil, err
	}
	logPlans(plans)

	log.Info("Connecting to database...")
	a.db, err = database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}
	a.metrics = observability.GetMetrics()

	if err := a.initEvents(ctx, localEvents); err != nil {
		a.close(ctx)
		return nil, err
	}

	a.investmentRepo = repository.NewInvestmentRepository(a.db)
	a.accrualRunRepo = repository.NewAccrualRunRepository(a.db)

	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Shortcode:      cfg.MpesaShortcode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.CallbackURL(),
		Timeout:        cfg.MpesaTimeout,
	})
	log.WithFields(log.Fields{
		"base_url":     cfg.MpesaBaseURL,
		"callback_url": cfg.CallbackURL(),
	}).Info("M-Pesa client configured")

	a.accrual = services.NewAccrualService(a.investmentRepo, a.publisher)
	a.reconciliation = services.NewReconciliationService(a.investmentRepo, gateway, plans, a.publisher, nil)
	a.investments = services.NewInvestmentService(a.investmentRepo, a.accrual, plans, nil)

	a.accrualWorker = application.NewAccrualWorker(
		a.investmentRepo,
		a.accrualRunRepo,
		a.accrual,
		a.metrics,
		cfg.AccrualConcurrency,
		cfg.AccrualRecordTimeout,
		nil,
	)
	a.reconciliationWorker = application.NewReconciliationWorker(
		a.reconciliation,
		a.metrics,
		cfg.PendingPollAfter,
		cfg.PendingExpiry,
	)

	return a, nil
}

func (a *app) initEvents(ctx context.Context, localEvents bool) error {
	mapper := infrastructure.NewEventSubjectMapper()

	if a.cfg.NATSEnabled {
		log.WithField("servers", a.cfg.NATSServers).Info("Connecting to NATS...")
		a.nats = infrastructure.NewNATSClient(a.cfg.NATSServers)
		if err := a.nats.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}

		publisher := infrastructure.NewNATSEventPublisher(a.nats, mapper, a.metrics)
		if err := publisher.EnsureEventStream(a.nats); err != nil {
			return fmt.Errorf("failed to set up event stream: %w", err)
		}
		application.RegisterMetricsSubscriptions(publisher, a.metrics)
		a.publisher = publisher
		return nil
	}

	if !localEvents {
		a.publisher = infrastructure.NewNoopEventPublisher()
		return nil
	}

	log.Info("NATS disabled, events are handled in-process only")
	publisher := infrastructure.NewNATSEventPublisher(nil, mapper, a.metrics)
	application.RegisterMetricsSubscriptions(publisher, a.metrics)
	a.publisher = publisher
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}
	if err := observability.ShutdownGlobalMetrics(ctx); err != nil {
		log.WithError(err).Warn("Error shutting down metrics")
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
}

func logPlans(plans *entities.PlanTable) {
	for _, p := range plans.All() {
		log.WithFields(log.Fields{
			"amount":           p.Amount,
			"rate_per_minute":  p.RatePerMinute.String(),
			"cycle_days":       p.CycleDays,
			"activation_bonus": p.ActivationBonus,
		}).Info("Loaded investment plan")
	}
}
