// Package saas is a reference Module for subscription businesses: revenue
// grows with net new demand and shrinks with churn, compounded over the
// elapsed tick.
package saas

import (
	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/industry"
	"github.com/chronicle-sim/core/rng"
)

// Module implements industry.Module for SaaS-shaped businesses.
type Module struct{}

// New returns a SaaS industry Module.
func New() *Module { return &Module{} }

func (*Module) Name() string { return "saas" }

// UpdateState compounds revenue by a configured growth rate net of churn,
// and jitters it slightly with the supplied deterministic source so that
// runs sharing a seed still diverge from runs that do not, without ever
// touching process-global randomness.
func (*Module) UpdateState(state companystate.CompanyState, daysElapsed float64, params map[string]any, source *rng.Source) (industry.Overrides, error) {
	monthlyGrowth := floatParam(params, "growth_rate_monthly", state.GrowthRate())
	jitter := floatParam(params, "demand_jitter", 0)

	fraction := daysElapsed / 30.0
	netGrowth := monthlyGrowth - state.ChurnRate
	multiplier := 1 + netGrowth*fraction
	if jitter > 0 {
		multiplier += source.NormFloat64() * jitter * fraction
	}
	if multiplier < 0 {
		multiplier = 0
	}

	revenue := state.RevenueMonthly * multiplier

	demand := make(map[string]float64, len(state.Demand))
	for product, v := range state.Demand {
		demand[product] = v * multiplier
	}

	metadata := map[string]any{"growth_rate": netGrowth}

	return industry.Overrides{
		RevenueMonthly: &revenue,
		Demand:         demand,
		Metadata:       metadata,
	}, nil
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return fallback
}
