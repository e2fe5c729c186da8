package saas

import (
	"testing"

	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/rng"
)

func TestUpdateStateCompoundsRevenue(t *testing.T) {
	m := New()
	state := companystate.CompanyState{
		RevenueMonthly: 100_000,
		ChurnRate:      0.01,
		Demand:         map[string]float64{"core": 1000},
	}
	overrides, err := m.UpdateState(state, 30, map[string]any{"growth_rate_monthly": 0.05}, rng.New(1))
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	if overrides.RevenueMonthly == nil {
		t.Fatal("expected a revenue override")
	}
	if *overrides.RevenueMonthly <= state.RevenueMonthly {
		t.Fatalf("revenue should grow net of churn, got %f", *overrides.RevenueMonthly)
	}
}

func TestUpdateStateIsDeterministic(t *testing.T) {
	m := New()
	state := companystate.CompanyState{RevenueMonthly: 50_000, Demand: map[string]float64{"core": 500}}
	params := map[string]any{"growth_rate_monthly": 0.02, "demand_jitter": 0.1}

	o1, err := m.UpdateState(state, 7, params, rng.New(99))
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	o2, err := m.UpdateState(state, 7, params, rng.New(99))
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	if *o1.RevenueMonthly != *o2.RevenueMonthly {
		t.Fatalf("identical seed should reproduce identical revenue: %f vs %f", *o1.RevenueMonthly, *o2.RevenueMonthly)
	}
}
