// Package d2c is a reference Module for direct-to-consumer businesses:
// demand draws down inventory, and customer acquisition cost inflates at
// a fixed monthly rate. Margin is left unchanged.
package d2c

import (
	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/industry"
	"github.com/chronicle-sim/core/rng"
)

// Module implements industry.Module for direct-to-consumer businesses.
type Module struct{}

// New returns a D2C industry Module.
func New() *Module { return &Module{} }

func (*Module) Name() string { return "d2c" }

// UpdateState draws inventory down by demand over the elapsed days,
// backlogs demand it cannot fill from stock, and inflates CAC by the
// cac_inflation param (default 0.01 per 30 days), independent of demand.
func (*Module) UpdateState(state companystate.CompanyState, daysElapsed float64, params map[string]any, source *rng.Source) (industry.Overrides, error) {
	fraction := daysElapsed / 30.0

	inventory := make(map[string]float64, len(state.Inventory))
	backlog := make(map[string]float64, len(state.Backlog))
	for k, v := range state.Inventory {
		inventory[k] = v
	}
	for k, v := range state.Backlog {
		backlog[k] = v
	}

	for product, demand := range state.Demand {
		drawdown := demand * fraction
		have := inventory[product]
		if drawdown <= have {
			inventory[product] = have - drawdown
		} else {
			inventory[product] = 0
			backlog[product] = backlog[product] + (drawdown - have)
		}
	}

	cac := make(map[string]float64, len(state.CAC))
	cacInflation := floatParam(params, "cac_inflation", 0.01)
	for product, v := range state.CAC {
		cac[product] = v * (1 + cacInflation*fraction)
	}

	return industry.Overrides{
		Inventory: inventory,
		Backlog:   backlog,
		CAC:       cac,
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
