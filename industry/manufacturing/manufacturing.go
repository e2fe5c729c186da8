// Package manufacturing is a reference Module for manufacturers:
// inventory builds toward a utilization-driven production rate, subject
// to stochastic lead-time slippage and supplier reliability drawn from
// the run's deterministic source.
package manufacturing

import (
	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/industry"
	"github.com/chronicle-sim/core/rng"
)

// Module implements industry.Module for manufacturing businesses.
type Module struct{}

// New returns a Manufacturing industry Module.
func New() *Module { return &Module{} }

func (*Module) Name() string { return "manufacturing" }

// UpdateState produces goods at capacity*utilization, subject to a
// per-product supplier reliability roll: an unreliable delivery shrinks
// that tick's production and stretches its lead time, both drawn from the
// supplied source so the outcome is reproducible for a given seed.
func (*Module) UpdateState(state companystate.CompanyState, daysElapsed float64, params map[string]any, source *rng.Source) (industry.Overrides, error) {
	reliabilityFloor := floatParam(params, "supplier_reliability_floor", 0.85)
	fraction := daysElapsed / 30.0

	inventory := make(map[string]float64, len(state.Inventory))
	for k, v := range state.Inventory {
		inventory[k] = v
	}
	leadTimes := make(map[string]float64, len(state.LeadTimes))
	for k, v := range state.LeadTimes {
		leadTimes[k] = v
	}

	for product, capacity := range state.Capacity {
		utilization := state.Utilization[product]
		reliability := reliabilityFloor + source.Float64()*(1-reliabilityFloor)

		produced := capacity * utilization * fraction * reliability
		inventory[product] = inventory[product] + produced

		baseLeadTime := leadTimes[product]
		if baseLeadTime > 0 {
			slip := (1 - reliability) * baseLeadTime
			leadTimes[product] = baseLeadTime + slip
		}
	}

	return industry.Overrides{
		Inventory: inventory,
		LeadTimes: leadTimes,
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
