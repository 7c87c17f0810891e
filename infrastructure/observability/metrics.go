package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"investor/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the investor service.
// All Record methods are safe to call on a nil or disabled provider.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Set by tests to read metrics without an exporter
	reader sdkmetric.Reader

	// Metric instruments
	createdCounter       metric.Int64Counter
	activatedCounter     metric.Int64Counter
	failedCounter        metric.Int64Counter
	completedCounter     metric.Int64Counter
	activeGauge          metric.Int64UpDownCounter
	returnsCounter       metric.Int64Counter
	accrualRunHist       metric.Float64Histogram
	reconcileCounter     metric.Int64Counter
	natsPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	reader := mp.reader
	if reader == nil {
		var exporter sdkmetric.Exporter
		switch mp.config.OTelExporterType {
		case "console":
			exporter, err = stdoutmetric.New()
			if err != nil {
				return fmt.Errorf("failed to create console exporter: %w", err)
			}
			log.Info("Using console metric exporter")

		case "otlp":
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			exporter, err = otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpoint(mp.config.OTelEndpoint),
				otlpmetricgrpc.WithInsecure(),
			)
			if err != nil {
				return fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			log.WithField("endpoint", mp.config.OTelEndpoint).Info("Using OTLP metric exporter")

		case "none":
			log.Info("Metrics export disabled (exporter_type='none')")
			mp.initialized = true
			return nil

		default:
			return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
		}

		reader = sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(mp.config.OTelExportInterval),
		)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("investor")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&mp.createdCounter, InvestmentsCreatedTotal, "Total number of investments created", "1"},
		{&mp.activatedCounter, InvestmentsActivatedTotal, "Total number of investments activated", "1"},
		{&mp.failedCounter, InvestmentsFailedTotal, "Total number of investments whose payment failed", "1"},
		{&mp.completedCounter, InvestmentsCompletedTotal, "Total number of investments that completed their cycle", "1"},
		{&mp.returnsCounter, ReturnsAccruedTotal, "Total returns credited to investments", "{KES}"},
		{&mp.reconcileCounter, ReconcileSweepOutcomes, "Pending investments handled by reconciliation sweeps", "1"},
		{&mp.natsPublishedCounter, NATSMessagesPublishedTotal, "Total number of NATS messages published", "1"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}

	// UpDownCounter for gauge-like behavior
	mp.activeGauge, err = mp.meter.Int64UpDownCounter(
		InvestmentsActive,
		metric.WithDescription("Current number of active investments"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active investments gauge: %w", err)
	}

	mp.accrualRunHist, err = mp.meter.Float64Histogram(
		AccrualRunDuration,
		metric.WithDescription("Duration of accrual passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create accrual run histogram: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordInvestmentCreated counts a new pending investment
func (mp *MetricsProvider) RecordInvestmentCreated(planAmount int64) {
	if !mp.isEnabled() {
		return
	}
	mp.createdCounter.Add(context.Background(), 1, planAttrs(planAmount))
}

// RecordInvestmentActivated counts an activation and raises the active gauge
func (mp *MetricsProvider) RecordInvestmentActivated(planAmount int64, source string) {
	if !mp.isEnabled() {
		return
	}
	mp.activatedCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(LabelPlanAmount, strconv.FormatInt(planAmount, 10)),
		attribute.String(LabelSource, source),
	))
	mp.activeGauge.Add(context.Background(), 1, planAttrs(planAmount))
}

// RecordInvestmentFailed counts a failed payment
func (mp *MetricsProvider) RecordInvestmentFailed(source string) {
	if !mp.isEnabled() {
		return
	}
	mp.failedCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(LabelSource, source),
	))
}

// RecordInvestmentCompleted counts a completion and lowers the active gauge
func (mp *MetricsProvider) RecordInvestmentCompleted(planAmount int64) {
	if !mp.isEnabled() {
		return
	}
	mp.completedCounter.Add(context.Background(), 1, planAttrs(planAmount))
	mp.activeGauge.Add(context.Background(), -1, planAttrs(planAmount))
}

// RecordReturnsAccrued adds credited returns
func (mp *MetricsProvider) RecordReturnsAccrued(delta int64) {
	if !mp.isEnabled() || delta <= 0 {
		return
	}
	mp.returnsCounter.Add(context.Background(), delta)
}

// RecordAccrualRun records how long an accrual pass took
func (mp *MetricsProvider) RecordAccrualRun(duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	mp.accrualRunHist.Record(context.Background(), duration.Seconds())
}

// RecordReconcileOutcome counts pending records handled by a sweep
func (mp *MetricsProvider) RecordReconcileOutcome(outcome string, n int) {
	if !mp.isEnabled() || n <= 0 {
		return
	}
	mp.reconcileCounter.Add(context.Background(), int64(n), metric.WithAttributes(
		attribute.String(LabelOutcome, outcome),
	))
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}
	mp.natsPublishedCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(LabelEventType, eventType),
	))
}

func planAttrs(planAmount int64) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(LabelPlanAmount, strconv.FormatInt(planAmount, 10)))
}

// isEnabled checks if metrics are enabled and instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meterProvider != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	return globalMetrics.Shutdown(ctx)
}
