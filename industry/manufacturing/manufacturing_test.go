package manufacturing

import (
	"testing"

	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/rng"
)

func TestUpdateStateProducesInventory(t *testing.T) {
	m := New()
	state := companystate.CompanyState{
		Capacity:    map[string]float64{"widget": 1000},
		Utilization: map[string]float64{"widget": 0.8},
		Inventory:   map[string]float64{"widget": 0},
		LeadTimes:   map[string]float64{"widget": 10},
	}
	overrides, err := m.UpdateState(state, 30, nil, rng.New(7))
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	if overrides.Inventory["widget"] <= 0 {
		t.Fatal("expected production to add inventory")
	}
}

func TestUpdateStateIsDeterministicForSeed(t *testing.T) {
	m := New()
	state := companystate.CompanyState{
		Capacity:    map[string]float64{"widget": 1000},
		Utilization: map[string]float64{"widget": 0.8},
		Inventory:   map[string]float64{"widget": 0},
		LeadTimes:   map[string]float64{"widget": 10},
	}
	o1, err := m.UpdateState(state, 30, nil, rng.New(42))
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	o2, err := m.UpdateState(state, 30, nil, rng.New(42))
	if err != nil {
		t.Fatalf("update state: %v", err)
	}
	if o1.Inventory["widget"] != o2.Inventory["widget"] {
		t.Fatalf("identical seed should reproduce identical production: %f vs %f", o1.Inventory["widget"], o2.Inventory["widget"])
	}
}
