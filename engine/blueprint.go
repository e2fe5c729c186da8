package engine

import (
	"time"

	"github.com/chronicle-sim/core/timelock"
)

// InitialConditions seeds the CompanyState an Engine constructs at time
// zero, per the blueprint.initial_conditions contract.
type InitialConditions struct {
	Cash        float64
	MonthlyBurn float64
	Pricing     map[string]float64
	Margin      float64
	Headcount   int
	Capacity    map[string]float64
}

// Constraints carries the structural limits a run operates under.
// HiringVelocityMax and SLATargetsMin double as policy.Config inputs; the
// rest describe the business without gating any single action directly.
type Constraints struct {
	HiringVelocityMax       *float64
	ProcurementLeadTimeDays *float64
	WorkingCapitalMin       *float64
	SLATargetsMin           *float64
	ComplianceStrictness    *float64
}

// Policies carries the pre-commit gating options a run is configured
// with; see policy.Config for the evaluation semantics.
type Policies struct {
	SpendLimitMonthly       *float64
	ApprovalThreshold       *float64
	MaxPercentChangePricing *float64
	RiskAppetite            *float64
}

// ExpiryBehavior selects what happens to an event's parameter_impacts
// once the event expires (spec §9's explicit open question: "it is
// unclear whether this is intentional ... or a bug"). Rather than
// silently picking one, the engine exposes it as a Blueprint field.
type ExpiryBehavior string

const (
	// ExpiryPermanent treats parameter_impacts as a permanent shock: they
	// are never reverted when the event expires. This is the spec's
	// literal described behavior and the default when unset.
	ExpiryPermanent ExpiryBehavior = "permanent"
	// ExpiryTransient reverts demand_multiplier/cost_multiplier/
	// churn_delta on expiry, the inverse of how they were applied at
	// activation, so the event's effect does not outlive its duration_days.
	ExpiryTransient ExpiryBehavior = "transient"
)

// Blueprint is the operator-authored description of a company and the
// rules it operates under, per spec §6's "Configuration in" contract.
type Blueprint struct {
	Industry          string
	InitialConditions InitialConditions
	Constraints       Constraints
	Policies          Policies
	MarketExposure    map[string]float64
	// IndustryParams is forwarded verbatim to the resolved industry
	// Module on every tick; its shape is defined by that module alone.
	IndustryParams map[string]any
	// ExpiryBehavior controls whether an event's parameter_impacts revert
	// when the event expires. Empty defaults to ExpiryPermanent.
	ExpiryBehavior ExpiryBehavior
}

// Timeline is the run's wall-clock span and its input Event stream.
type Timeline struct {
	StartDate time.Time
	EndDate   time.Time
	Events    []timelock.Event
}
