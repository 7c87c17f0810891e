package application

import (
	"fmt"
	"time"

	"investor/domain/entities"

	"github.com/shopspring/decimal"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func basicPlan() entities.Plan {
	return entities.Plan{Amount: 1, RatePerMinute: decimal.NewFromInt(5), CycleDays: 3}
}

func activeInvestment(owner string, createdAt time.Time) *entities.Investment {
	inv := entities.NewPendingInvestment(owner, basicPlan(), "254712345678", createdAt)
	inv.Status = entities.InvestmentStatusActive
	correlation := fmt.Sprintf("ws_CO_%s", inv.ID)
	inv.CorrelationID = &correlation
	activated := createdAt
	inv.ActivatedAt = &activated
	return inv
}
