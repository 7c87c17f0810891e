package config

import (
	"fmt"
	"os"

	"investor/domain/entities"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type planFile struct {
	Plans []planEntry `yaml:"plans"`
}

// Rates are kept as strings so 0.1 is never read through a float
type planEntry struct {
	Amount          int64  `yaml:"amount"`
	RatePerMinute   string `yaml:"rate_per_minute"`
	CycleDays       int    `yaml:"cycle_days"`
	ActivationBonus int64  `yaml:"activation_bonus"`
}

// LoadPlans reads the plan table from path. An empty path yields the default table.
func LoadPlans(path string) (*entities.PlanTable, error) {
	if path == "" {
		return entities.NewPlanTable(entities.DefaultPlans())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file %s: %w", path, err)
	}
	return ParsePlans(data)
}

// ParsePlans decodes a YAML plan table
func ParsePlans(data []byte) (*entities.PlanTable, error) {
	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}

	plans := make([]entities.Plan, 0, len(file.Plans))
	for i, entry := range file.Plans {
		rate, err := decimal.NewFromString(entry.RatePerMinute)
		if err != nil {
			return nil, fmt.Errorf("plan %d: invalid rate_per_minute %q: %w", i, entry.RatePerMinute, err)
		}
		plans = append(plans, entities.Plan{
			Amount:          entry.Amount,
			RatePerMinute:   rate,
			CycleDays:       entry.CycleDays,
			ActivationBonus: entry.ActivationBonus,
		})
	}

	return entities.NewPlanTable(plans)
}
