// Package engine implements the Simulation Engine (C7): the per-run tick
// loop, the only component that commits state transitions, and the sole
// holder of a run's Time-Lock key and RNG source. It composes C1 (rng),
// C2 (companystate), C3 (timelock), and C4 (event/industry application).
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/chronicle-sim/core/action"
	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/industry"
	"github.com/chronicle-sim/core/rng"
	"github.com/chronicle-sim/core/simerr"
	"github.com/chronicle-sim/core/timelock"

	"github.com/google/uuid"
)

// Engine owns one run's state, RNG, and Time-Lock key. Every exported
// method is safe for concurrent use; the tick loop itself is expected to
// be driven by a single caller per spec.md §5, but GetInformationContext
// and GetMetrics may be read from other goroutines between ticks.
type Engine struct {
	mu sync.Mutex

	runID    string
	tickDays float64

	blueprint Blueprint
	module    industry.Module

	currentTime time.Time
	endTime     time.Time
	currentTick uint64

	state  companystate.CompanyState
	source *rng.Source

	timelockKey []byte

	events       []timelock.Event
	activated    map[int]bool
	active       map[int]bool
	expiredOrder []int

	appliedActions map[string]bool
}

// New validates the timeline and blueprint, derives the initial
// CompanyState from blueprint.initial_conditions, generates the run's
// Time-Lock key, and seeds the RNG from seed. module may be nil, in which
// case ticks skip the industry-dynamics step (useful for policy/ledger
// integration tests that only exercise actions and cash flow).
func New(blueprint Blueprint, timeline Timeline, seed int64, tickDays float64, runID string, module industry.Module) (*Engine, error) {
	if timeline.EndDate.Before(timeline.StartDate) {
		return nil, simerr.New(simerr.KindInvalidInput, "engine: timeline end_date precedes start_date")
	}
	for _, ev := range timeline.Events {
		if ev.Severity < 0 || ev.Severity > 1 {
			return nil, simerr.New(simerr.KindInvalidInput, fmt.Sprintf("engine: event %q severity %f outside [0,1]", ev.EventType, ev.Severity))
		}
		if ev.DurationDays <= 0 {
			return nil, simerr.New(simerr.KindInvalidInput, fmt.Sprintf("engine: event %q duration_days must be > 0", ev.EventType))
		}
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if tickDays <= 0 {
		tickDays = 7
	}
	if blueprint.ExpiryBehavior == "" {
		blueprint.ExpiryBehavior = ExpiryPermanent
	}

	key, err := timelock.GenerateKey()
	if err != nil {
		return nil, simerr.Wrap(simerr.KindExternalFailure, "engine: generate time-lock key", err)
	}

	initial := blueprint.InitialConditions
	state := companystate.CompanyState{
		Timestamp:    timeline.StartDate,
		Version:      0,
		Cash:         initial.Cash,
		CostsMonthly: initial.MonthlyBurn,
		Margin:       initial.Margin,
		Headcount:    initial.Headcount,
		Capacity:     cloneFloatMap(initial.Capacity),
		Pricing:      cloneFloatMap(initial.Pricing),
		Utilization:  map[string]float64{},
		Demand:       map[string]float64{},
		CAC:          map[string]float64{},
		Inventory:    map[string]float64{},
		Backlog:      map[string]float64{},
		LeadTimes:    map[string]float64{},
		Metadata:     map[string]any{},
	}

	return &Engine{
		runID:          runID,
		tickDays:       tickDays,
		blueprint:      blueprint,
		module:         module,
		currentTime:    timeline.StartDate,
		endTime:        timeline.EndDate,
		state:          state,
		source:         rng.New(seed),
		timelockKey:    key,
		events:         append([]timelock.Event(nil), timeline.Events...),
		activated:      map[int]bool{},
		active:         map[int]bool{},
		appliedActions: map[string]bool{},
	}, nil
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RunID returns the run identifier this engine was constructed with.
func (e *Engine) RunID() string { return e.runID }

// CurrentTime returns the engine's current wall-clock time.
func (e *Engine) CurrentTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

// CurrentTick returns the number of ticks applied so far.
func (e *Engine) CurrentTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTick
}

// StateSnapshot returns an independent copy of the live CompanyState: safe
// to hand to an agent or across a goroutine boundary, since mutating the
// returned value can never reach the engine's own maps.
func (e *Engine) StateSnapshot() companystate.CompanyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.DeepCopy()
}

// GetInformationContext builds the time-locked view of the world at the
// engine's current wall-time. This is the only world-state an agent ever
// observes; it never contains an event or signal later than CurrentTime.
func (e *Engine) GetInformationContext() (timelock.InformationContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.informationContextLocked()
}

func (e *Engine) informationContextLocked() (timelock.InformationContext, error) {
	encrypted, err := timelock.EncryptFutureEvents(e.events, e.currentTime.Unix(), e.timelockKey)
	if err != nil {
		return timelock.InformationContext{}, simerr.Wrap(simerr.KindExternalFailure, "engine: encrypt timeline for information context", err)
	}
	ctx, err := timelock.BuildInformationContext(encrypted, e.currentTime.Unix(), e.currentTick, e.timelockKey, e.activeEventTypesLocked(), e.recentEventTypesLocked())
	if err != nil {
		return timelock.InformationContext{}, simerr.Wrap(simerr.KindExternalFailure, "engine: build information context", err)
	}
	return ctx, nil
}

func (e *Engine) activeEventTypesLocked() []string {
	types := make([]string, 0, len(e.active))
	for i := range e.active {
		types = append(types, e.events[i].EventType)
	}
	return types
}

// recentEventTypesLocked returns the event types of the last few events to
// expire, a short memory window useful to agents that react to a shock
// having just ended.
func (e *Engine) recentEventTypesLocked() []string {
	const window = 5
	start := 0
	if len(e.expiredOrder) > window {
		start = len(e.expiredOrder) - window
	}
	types := make([]string, 0, len(e.expiredOrder)-start)
	for _, i := range e.expiredOrder[start:] {
		types = append(types, e.events[i].EventType)
	}
	return types
}

// ApplyAction applies a proposed action against the live state. If
// action.ID was already recorded by a prior successful ApplyAction on
// this engine, it returns true without touching state (idempotent
// success). Otherwise it computes the candidate next state for the
// action's type, validates the resulting transition, and commits only on
// success. A validation failure returns (false, err) with the err's Kind
// carrying the reason; the engine's state is left untouched either way.
func (e *Engine) ApplyAction(act action.Action, agentRole string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if act.ID != "" && e.appliedActions[act.ID] {
		return true, nil
	}

	candidate, err := e.candidateStateLocked(act)
	if err != nil {
		return false, err
	}

	transition := companystate.Transition{
		Before:    e.state,
		After:     candidate,
		Action:    string(act.Type),
		AgentRole: agentRole,
		Reason:    act.Reason,
		WallTime:  e.currentTime,
	}
	if err := companystate.Validate(transition); err != nil {
		return false, err
	}

	e.state = candidate
	if act.ID != "" {
		e.appliedActions[act.ID] = true
	}
	return true, nil
}

func (e *Engine) candidateStateLocked(act action.Action) (companystate.CompanyState, error) {
	switch act.Type {
	case action.AdjustHiring:
		params, ok := act.Params.(action.AdjustHiringParams)
		if !ok {
			return companystate.CompanyState{}, simerr.New(simerr.KindInvalidInput, "engine: adjust_hiring action missing typed params")
		}
		headcount := e.state.Headcount + params.Delta
		if headcount < 0 {
			headcount = 0
		}
		costs := e.state.CostsMonthly + float64(params.Delta)*params.CostPerHead
		return e.state.Clone(companystate.Overrides{Headcount: &headcount, CostsMonthly: &costs}), nil

	case action.ChangePricing:
		params, ok := act.Params.(action.ChangePricingParams)
		if !ok {
			return companystate.CompanyState{}, simerr.New(simerr.KindInvalidInput, "engine: change_pricing action missing typed params")
		}
		return e.state.Clone(companystate.Overrides{Pricing: params.Pricing}), nil

	case action.AllocateBudget:
		params, ok := act.Params.(action.AllocateBudgetParams)
		if !ok {
			return companystate.CompanyState{}, simerr.New(simerr.KindInvalidInput, "engine: allocate_budget action missing typed params")
		}
		var total float64
		for _, v := range params.Allocation {
			total += v
		}
		cash := e.state.Cash
		if total <= e.state.Cash {
			cash = e.state.Cash - total
		}
		return e.state.Clone(companystate.Overrides{Cash: &cash}), nil

	case action.ModifyInventoryPolicy:
		params, ok := act.Params.(action.ModifyInventoryPolicyParams)
		if !ok {
			return companystate.CompanyState{}, simerr.New(simerr.KindInvalidInput, "engine: modify_inventory_policy action missing typed params")
		}
		return e.state.Clone(companystate.Overrides{Inventory: params.Inventory}), nil

	case action.TriggerCostCutting:
		params, ok := act.Params.(action.TriggerCostCuttingParams)
		if !ok {
			return companystate.CompanyState{}, simerr.New(simerr.KindInvalidInput, "engine: trigger_cost_cutting action missing typed params")
		}
		costs := e.state.CostsMonthly * (1 - params.ReductionPercent)
		return e.state.Clone(companystate.Overrides{CostsMonthly: &costs}), nil

	default:
		return companystate.CompanyState{}, simerr.New(simerr.KindInvalidInput, fmt.Sprintf("engine: unrecognized action type %q", act.Type))
	}
}

// Tick advances the run by one tick_days step. It returns false without
// effect once current_time has reached end_time. Order of operations per
// tick: advance the clock, expire events whose window has closed, activate
// newly-reached events (applying their parameter impacts), run the
// industry module, then the fixed cash-flow step.
func (e *Engine) Tick() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.currentTime.Before(e.endTime) {
		return false, nil
	}

	e.currentTick++
	daysElapsed := e.tickDays
	e.currentTime = e.currentTime.Add(time.Duration(e.tickDays * 24 * float64(time.Hour)))

	for i, ev := range e.events {
		if !e.active[i] {
			continue
		}
		expiry := ev.Timestamp.Add(time.Duration(ev.DurationDays * 24 * float64(time.Hour)))
		if expiry.Before(e.currentTime) {
			delete(e.active, i)
			e.expiredOrder = append(e.expiredOrder, i)
			if e.blueprint.ExpiryBehavior == ExpiryTransient {
				e.reverseParameterImpactsLocked(ev.ParameterImpacts)
			}
		}
	}

	for i, ev := range e.events {
		if e.activated[i] {
			continue
		}
		if !ev.Timestamp.After(e.currentTime) {
			e.activated[i] = true
			e.active[i] = true
			e.applyParameterImpactsLocked(ev.ParameterImpacts)
		}
	}

	if e.module != nil {
		overrides, err := e.module.UpdateState(e.state, daysElapsed, e.blueprint.IndustryParams, e.source)
		if err != nil {
			return false, simerr.Wrap(simerr.KindExternalFailure, "engine: industry module update", err)
		}
		e.state = e.state.Clone(overrides)
	}

	fraction := daysElapsed / 30.0
	revenue := e.state.RevenueMonthly * fraction
	costs := e.state.CostsMonthly * fraction
	cash := e.state.Cash + revenue - costs
	ts := e.currentTime
	e.state = e.state.Clone(companystate.Overrides{Cash: &cash, Timestamp: &ts})

	return true, nil
}

// applyParameterImpactsLocked applies the three recognized impact keys
// from an event's parameter_impacts; unrecognized keys are ignored so new
// event authors can add forward-looking levers without breaking old
// engines.
func (e *Engine) applyParameterImpactsLocked(impacts map[string]float64) {
	if len(impacts) == 0 {
		return
	}
	overrides := companystate.Overrides{}

	if multiplier, ok := impacts["demand_multiplier"]; ok {
		demand := cloneFloatMap(e.state.Demand)
		for product := range demand {
			demand[product] *= multiplier
		}
		overrides.Demand = demand
	}
	if multiplier, ok := impacts["cost_multiplier"]; ok {
		costs := e.state.CostsMonthly * multiplier
		overrides.CostsMonthly = &costs
	}
	if delta, ok := impacts["churn_delta"]; ok {
		churn := e.state.ChurnRate + delta
		if churn < 0 {
			churn = 0
		}
		if churn > 1 {
			churn = 1
		}
		overrides.ChurnRate = &churn
	}

	e.state = e.state.Clone(overrides)
}

// reverseParameterImpactsLocked undoes the three recognized impact keys
// applied by applyParameterImpactsLocked, for ExpiryTransient engines. It
// is the inverse of each operation: divide out a multiplier, subtract
// back a delta. churn_delta's clamp into [0,1] is not perfectly
// invertible if it saturated while active; the reversal still subtracts
// the nominal delta and re-clamps, the best-effort undo the spec's open
// question leaves to the implementer.
func (e *Engine) reverseParameterImpactsLocked(impacts map[string]float64) {
	if len(impacts) == 0 {
		return
	}
	overrides := companystate.Overrides{}

	if multiplier, ok := impacts["demand_multiplier"]; ok && multiplier != 0 {
		demand := cloneFloatMap(e.state.Demand)
		for product := range demand {
			demand[product] /= multiplier
		}
		overrides.Demand = demand
	}
	if multiplier, ok := impacts["cost_multiplier"]; ok && multiplier != 0 {
		costs := e.state.CostsMonthly / multiplier
		overrides.CostsMonthly = &costs
	}
	if delta, ok := impacts["churn_delta"]; ok {
		churn := e.state.ChurnRate - delta
		if churn < 0 {
			churn = 0
		}
		if churn > 1 {
			churn = 1
		}
		overrides.ChurnRate = &churn
	}

	e.state = e.state.Clone(overrides)
}

// Metrics is the flat view of run health exposed to callers and printed
// by the CLI.
type Metrics struct {
	Cash           float64
	RunwayMonths   float64
	RevenueMonthly float64
	CostsMonthly   float64
	Headcount      int
	ServiceLevel   float64
	Version        uint64
	GrowthRate     float64
}

// GetMetrics returns a flat snapshot of run health.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Metrics{
		Cash:           e.state.Cash,
		RunwayMonths:   e.state.RunwayMonths(),
		RevenueMonthly: e.state.RevenueMonthly,
		CostsMonthly:   e.state.CostsMonthly,
		Headcount:      e.state.Headcount,
		ServiceLevel:   e.state.ServiceLevel,
		Version:        e.state.Version,
		GrowthRate:     e.state.GrowthRate(),
	}
}

// ExportState returns the canonical dictionary view of the live state.
func (e *Engine) ExportState() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ToDict()
}
