package observability

// Metric name prefixes
const (
	MetricPrefix = "investor"
)

// Metric names
const (
	// Investment lifecycle metrics
	InvestmentsCreatedTotal   = MetricPrefix + ".investments.created_total"
	InvestmentsActivatedTotal = MetricPrefix + ".investments.activated_total"
	InvestmentsFailedTotal    = MetricPrefix + ".investments.failed_total"
	InvestmentsCompletedTotal = MetricPrefix + ".investments.completed_total"
	InvestmentsActive         = MetricPrefix + ".investments.active"

	// Returns metrics
	ReturnsAccruedTotal = MetricPrefix + ".returns.accrued_total"

	// Worker metrics
	AccrualRunDuration     = MetricPrefix + ".accrual.run_duration"
	ReconcileSweepOutcomes = MetricPrefix + ".reconcile.outcomes_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelPlanAmount = "plan_amount"
	LabelSource     = "source"
	LabelOutcome    = "outcome"
	LabelEventType  = "event_type"
)

// Reconciliation sweep outcomes
const (
	OutcomeActivated = "activated"
	OutcomeFailed    = "failed"
	OutcomeExpired   = "expired"
	OutcomeOpen      = "still_open"
	OutcomeError     = "error"
)
