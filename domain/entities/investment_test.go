package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvestmentStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	allowed := map[InvestmentStatus][]InvestmentStatus{
		InvestmentStatusPending: {InvestmentStatusActive, InvestmentStatusFailed},
		InvestmentStatusActive:  {InvestmentStatusCompleted},
	}
	all := []InvestmentStatus{InvestmentStatusPending, InvestmentStatusActive, InvestmentStatusFailed, InvestmentStatusCompleted}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, InvestmentStatusFailed.IsTerminal())
	assert.True(t, InvestmentStatusCompleted.IsTerminal())
	assert.False(t, InvestmentStatus("cancelled").IsValid())
}

func TestInvestmentUpdate_ApplyTo(t *testing.T) {
	t.Parallel()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := Plan{Amount: 1, RatePerMinute: decimal.NewFromInt(5), CycleDays: 3}

	t.Run("returns and accrual time only move forward", func(t *testing.T) {
		t.Parallel()
		inv := NewPendingInvestment("owner", plan, "254712345678", created)
		inv.Status = InvestmentStatusActive
		inv.AccruedReturns = 100
		inv.LastAccrualAt = created.Add(20 * time.Minute)

		lower := int64(40)
		earlier := created.Add(5 * time.Minute)
		out := InvestmentUpdate{AccruedReturns: &lower, LastAccrualAt: &earlier}.ApplyTo(inv, created)

		assert.Equal(t, int64(100), out.AccruedReturns)
		assert.Equal(t, created.Add(20*time.Minute), out.LastAccrualAt)

		higher := int64(150)
		later := created.Add(30 * time.Minute)
		out = InvestmentUpdate{AccruedReturns: &higher, LastAccrualAt: &later}.ApplyTo(out, created)
		assert.Equal(t, int64(150), out.AccruedReturns)
		assert.Equal(t, later, out.LastAccrualAt)
	})

	t.Run("identifiers are set once", func(t *testing.T) {
		t.Parallel()
		inv := NewPendingInvestment("owner", plan, "254712345678", created)
		first, second := "ws_CO_1", "ws_CO_2"
		receipt, otherReceipt := "NLJ7RT61SV", "XXXXXXXXXX"

		out := InvestmentUpdate{CorrelationID: &first, ExternalReceipt: &receipt}.ApplyTo(inv, created)
		out = InvestmentUpdate{CorrelationID: &second, ExternalReceipt: &otherReceipt}.ApplyTo(out, created)

		require.NotNil(t, out.CorrelationID)
		assert.Equal(t, first, *out.CorrelationID)
		assert.Equal(t, receipt, *out.ExternalReceipt)
		assert.Nil(t, inv.CorrelationID, "input record must not be mutated")
	})

	t.Run("validate rejects illegal transitions", func(t *testing.T) {
		t.Parallel()
		upd := InvestmentUpdate{Status: StatusPtr(InvestmentStatusActive)}
		assert.NoError(t, upd.Validate(InvestmentStatusPending))
		assert.ErrorIs(t, upd.Validate(InvestmentStatusCompleted), ErrInvalidTransition)
		assert.ErrorIs(t, InvestmentUpdate{Status: StatusPtr(InvestmentStatusPending)}.Validate(InvestmentStatusFailed), ErrInvalidTransition)

		negative := int64(-1)
		assert.Error(t, InvestmentUpdate{AccruedReturns: &negative}.Validate(InvestmentStatusActive))
	})
}

func TestPlanTable(t *testing.T) {
	t.Parallel()

	table, err := NewPlanTable(DefaultPlans())
	require.NoError(t, err)

	plan, err := table.Lookup(10)
	require.NoError(t, err)
	assert.Equal(t, "15", plan.RatePerMinute.String())
	assert.Equal(t, int64(64800), plan.FinalReturns())

	_, err = table.Lookup(7)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = NewPlanTable([]Plan{
		{Amount: 1, RatePerMinute: decimal.NewFromInt(1), CycleDays: 1},
		{Amount: 1, RatePerMinute: decimal.NewFromInt(2), CycleDays: 1},
	})
	assert.Error(t, err)

	_, err = NewPlanTable([]Plan{{Amount: 1, RatePerMinute: decimal.NewFromInt(1), CycleDays: 0}})
	assert.Error(t, err)

	_, err = NewPlanTable(nil)
	assert.Error(t, err)
}

func TestPlan_ValidateCycleLength(t *testing.T) {
	t.Parallel()

	longest := Plan{Amount: 1, RatePerMinute: decimal.NewFromInt(1), CycleDays: MaxCycleDays}
	require.NoError(t, longest.Validate())
	assert.Equal(t, time.Duration(MaxCycleDays)*24*time.Hour, longest.CycleDuration())
	assert.True(t, longest.CycleDuration() > 0)

	tooLong := Plan{Amount: 1, RatePerMinute: decimal.NewFromInt(1), CycleDays: 200000}
	err := tooLong.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed")
}

func TestNormalizePhoneNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "0712345678", want: "254712345678"},
		{input: "+254712345678", want: "254712345678"},
		{input: "254712345678", want: "254712345678"},
		{input: "712345678", want: "254712345678"},
		{input: "0112 345-678", want: "254112345678"},
		{input: " (0712) 345 678 ", want: "254712345678"},
		{input: "0812345678", wantErr: true},
		{input: "25471234567", wantErr: true},
		{input: "12345", wantErr: true},
		{input: "", wantErr: true},
		{input: "07123456ab", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizePhoneNumber(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhoneNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
