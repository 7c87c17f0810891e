package testutil

import (
	"time"

	"investor/domain/entities"

	"github.com/shopspring/decimal"
)

// TestPlan is a three day plan paying five units a minute
func TestPlan() entities.Plan {
	return entities.Plan{
		Amount:        1,
		RatePerMinute: decimal.NewFromInt(5),
		CycleDays:     3,
	}
}

// CreateTestInvestment builds a pending investment created at createdAt.
// Times are truncated to microseconds to survive a round trip through PostgreSQL.
func CreateTestInvestment(ownerID string, createdAt time.Time) *entities.Investment {
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	return entities.NewPendingInvestment(ownerID, TestPlan(), "254712345678", createdAt)
}

// CreateTestInvestmentWithCorrelation builds a pending investment that has been prompted
func CreateTestInvestmentWithCorrelation(ownerID, correlationID string, createdAt time.Time) *entities.Investment {
	inv := CreateTestInvestment(ownerID, createdAt)
	inv.CorrelationID = &correlationID
	return inv
}

// CreateTestAccrualRun creates a run with sensible counts
func CreateTestAccrualRun(startedAt time.Time) *entities.AccrualRun {
	startedAt = startedAt.UTC().Truncate(time.Microsecond)
	return &entities.AccrualRun{
		StartedAt:            startedAt,
		FinishedAt:           startedAt.Add(1500 * time.Millisecond),
		InvestmentsScanned:   12,
		InvestmentsAccrued:   10,
		InvestmentsCompleted: 1,
		InvestmentsFailed:    1,
		TotalReturnsAccrued:  640,
		ExecutionSummary: map[string]interface{}{
			"concurrency": 4,
		},
	}
}
