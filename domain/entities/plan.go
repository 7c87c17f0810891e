package entities

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minutesPerDay = 24 * 60

	// MaxCycleDays keeps the cycle well inside what time.Duration can represent
	MaxCycleDays = 3650
)

// Plan is the set of terms an investment is priced with
type Plan struct {
	Amount          int64           `yaml:"amount" json:"amount"`
	RatePerMinute   decimal.Decimal `yaml:"rate_per_minute" json:"ratePerMinute"`
	CycleDays       int             `yaml:"cycle_days" json:"cycleDays"`
	ActivationBonus int64           `yaml:"activation_bonus" json:"activationBonus"`
}

// Validate checks the plan terms are usable
func (p Plan) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("plan amount must be positive, got %d", p.Amount)
	}
	if p.RatePerMinute.IsNegative() {
		return fmt.Errorf("plan %d: rate per minute cannot be negative", p.Amount)
	}
	if p.CycleDays <= 0 {
		return fmt.Errorf("plan %d: cycle days must be positive, got %d", p.Amount, p.CycleDays)
	}
	if p.CycleDays > MaxCycleDays {
		return fmt.Errorf("plan %d: cycle days cannot exceed %d, got %d", p.Amount, MaxCycleDays, p.CycleDays)
	}
	if p.ActivationBonus < 0 {
		return fmt.Errorf("plan %d: activation bonus cannot be negative", p.Amount)
	}
	return nil
}

// CycleDuration is the length of the accrual cycle
func (p Plan) CycleDuration() time.Duration {
	return time.Duration(p.CycleDays) * 24 * time.Hour
}

// CycleMinutes is the number of whole minutes in the cycle
func (p Plan) CycleMinutes() int64 {
	return int64(p.CycleDays) * minutesPerDay
}

// ReturnsAfter is the amount owed after the given number of whole minutes.
// Fractional units are truncated, never rounded.
func (p Plan) ReturnsAfter(minutes int64) int64 {
	if minutes < 0 {
		minutes = 0
	}
	earned := p.RatePerMinute.Mul(decimal.NewFromInt(minutes)).Floor().IntPart()
	return p.ActivationBonus + earned
}

// FinalReturns is the amount owed once the cycle has fully elapsed
func (p Plan) FinalReturns() int64 {
	return p.ReturnsAfter(p.CycleMinutes())
}

// PlanTable maps a plan amount to its terms
type PlanTable struct {
	plans map[int64]Plan
}

// NewPlanTable validates the plans and indexes them by amount
func NewPlanTable(plans []Plan) (*PlanTable, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan table is empty")
	}
	table := &PlanTable{plans: make(map[int64]Plan, len(plans))}
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := table.plans[p.Amount]; dup {
			return nil, fmt.Errorf("duplicate plan amount %d", p.Amount)
		}
		table.plans[p.Amount] = p
	}
	return table, nil
}

// Lookup returns the plan for amount or ErrInvalidPlan
func (t *PlanTable) Lookup(amount int64) (Plan, error) {
	p, ok := t.plans[amount]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidPlan, amount)
	}
	return p, nil
}

// All returns the plans ordered by amount
func (t *PlanTable) All() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for _, p := range t.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// DefaultPlans are the plans offered when no plan file is configured
func DefaultPlans() []Plan {
	return []Plan{
		{Amount: 1, RatePerMinute: decimal.NewFromInt(5), CycleDays: 3},
		{Amount: 5, RatePerMinute: decimal.NewFromInt(8), CycleDays: 3},
		{Amount: 10, RatePerMinute: decimal.NewFromInt(15), CycleDays: 3},
	}
}
