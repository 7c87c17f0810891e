package entities

import (
	"time"
)

// AccrualRun records one pass of the accrual scheduler over the active investments
type AccrualRun struct {
	ID                   int64                  `db:"id"`
	StartedAt            time.Time              `db:"started_at"`
	FinishedAt           time.Time              `db:"finished_at"`
	InvestmentsScanned   int                    `db:"investments_scanned"`
	InvestmentsAccrued   int                    `db:"investments_accrued"`
	InvestmentsCompleted int                    `db:"investments_completed"`
	InvestmentsFailed    int                    `db:"investments_failed"`
	TotalReturnsAccrued  int64                  `db:"total_returns_accrued"`
	ExecutionSummary     map[string]interface{} `db:"execution_summary"`
	CreatedAt            time.Time              `db:"created_at"`
}

// Duration is how long the pass took
func (r *AccrualRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Accrual is the outcome of evaluating an investment's owed returns at an instant
type Accrual struct {
	Expected       int64 // returns owed at the evaluation instant
	Minutes        int64 // whole minutes elapsed since the origin, clamped at zero
	ElapsedDays    float64
	CycleCompleted bool
}

// ReconciliationSummary reports what one pending-payment sweep did
type ReconciliationSummary struct {
	Scanned   int
	Activated int
	Failed    int
	Expired   int
	StillOpen int
	Errors    int
}

// InvestmentStats aggregates an owner's investments
type InvestmentStats struct {
	TotalInvested    int64 `json:"totalInvested"`
	TotalReturns     int64 `json:"totalReturns"`
	ActiveCount      int   `json:"activeInvestments"`
	PendingCount     int   `json:"pendingInvestments"`
	CompletedCount   int   `json:"completedInvestments"`
	FailedCount      int   `json:"failedInvestments"`
	ProjectedReturns int64 `json:"projectedReturns"`
}
