package services

import (
	"time"

	"investor/domain/entities"

	"github.com/shopspring/decimal"
)

const (
	TestOwnerID       = "user-123"
	TestPhoneNumber   = "254712345678"
	TestCorrelationID = "ws_CO_191220191020363925"
	TestMerchantID    = "29115-34620561-1"
	TestReceipt       = "NLJ7RT61SV"
)

// testEpoch is the creation time used by fixtures
var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// basicPlan mirrors the smallest default plan: 5 units a minute for three days
func basicPlan() entities.Plan {
	return entities.Plan{Amount: 1, RatePerMinute: decimal.NewFromInt(5), CycleDays: 3}
}

func testPlanTable() *entities.PlanTable {
	table, err := entities.NewPlanTable(entities.DefaultPlans())
	if err != nil {
		panic(err)
	}
	return table
}

func newActiveInvestment(plan entities.Plan, createdAt time.Time) *entities.Investment {
	inv := entities.NewPendingInvestment(TestOwnerID, plan, TestPhoneNumber, createdAt)
	inv.Status = entities.InvestmentStatusActive
	inv.AccruedReturns = plan.ActivationBonus
	correlation := TestCorrelationID
	inv.CorrelationID = &correlation
	activated := createdAt
	inv.ActivatedAt = &activated
	return inv
}

func newPendingInvestment(correlationID string, createdAt time.Time) *entities.Investment {
	inv := entities.NewPendingInvestment(TestOwnerID, basicPlan(), TestPhoneNumber, createdAt)
	if correlationID != "" {
		inv.CorrelationID = &correlationID
	}
	return inv
}

// fixedClock returns a clock that can be moved by the test
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}
