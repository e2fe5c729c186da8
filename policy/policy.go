// Package policy implements synchronous pre-commit evaluation of proposed
// actions (approve / deny / escalate with rule-level attribution) and
// post-commit invariant checking, per the recognized policy options.
package policy

import (
	"fmt"
	"math"

	"github.com/chronicle-sim/core/action"
	"github.com/chronicle-sim/core/companystate"
)

// Config is the subset of a Blueprint's policies/constraints this engine
// recognizes. Every field is optional (nil disables the corresponding
// check): a Blueprint that never mentions spend limits, for instance,
// places no ceiling on allocate_budget actions.
type Config struct {
	SpendLimitMonthly       *float64
	MaxPercentChangePricing *float64
	HiringVelocityMax       *float64
	ApprovalThreshold       *float64
	RiskAppetite            *float64
	MinRunwayMonths         *float64
	SLATargetMin            *float64
}

// Engine evaluates actions against a fixed Config.
type Engine struct {
	cfg Config
}

// New constructs a policy Engine bound to cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// EvaluateAction implements §4.5: collect every hard-constraint violation
// first; a non-empty list always denies, regardless of how far the action
// also exceeds the approval threshold or risk appetite. Only a violation-
// free action can be escalated or approved.
func (e *Engine) EvaluateAction(act action.Action, state companystate.CompanyState) action.Result {
	violations := e.hardConstraintViolations(act, state)
	if len(violations) > 0 {
		return action.Result{
			Decision:      action.Deny,
			Reason:        "violates one or more hard constraints",
			ViolatedRules: violations,
		}
	}

	if e.cfg.ApprovalThreshold != nil && act.EstimatedImpact != nil && *act.EstimatedImpact > *e.cfg.ApprovalThreshold {
		return action.Result{Decision: action.Escalate, Reason: "estimated impact exceeds approval threshold"}
	}
	if e.cfg.RiskAppetite != nil && act.RiskScore != nil && *act.RiskScore > *e.cfg.RiskAppetite {
		return action.Result{Decision: action.Escalate, Reason: "risk score exceeds risk appetite"}
	}

	return action.Result{Decision: action.Approve, Reason: "within all configured limits"}
}

func (e *Engine) hardConstraintViolations(act action.Action, state companystate.CompanyState) []string {
	var violations []string

	switch act.Type {
	case action.AllocateBudget:
		params, ok := act.Params.(action.AllocateBudgetParams)
		if ok && e.cfg.SpendLimitMonthly != nil {
			var total float64
			for _, v := range params.Allocation {
				total += v
			}
			if total > *e.cfg.SpendLimitMonthly {
				violations = append(violations, "spend_limit")
			}
		}

	case action.ChangePricing:
		params, ok := act.Params.(action.ChangePricingParams)
		if ok && e.cfg.MaxPercentChangePricing != nil {
			for product, newPrice := range params.Pricing {
				oldPrice, exists := state.Pricing[product]
				if !exists || oldPrice == 0 {
					continue
				}
				pctChange := math.Abs(newPrice-oldPrice) / oldPrice
				if pctChange > *e.cfg.MaxPercentChangePricing {
					violations = append(violations, fmt.Sprintf("max_percent_change.pricing:%s", product))
				}
			}
		}

	case action.AdjustHiring:
		params, ok := act.Params.(action.AdjustHiringParams)
		if ok && e.cfg.HiringVelocityMax != nil {
			delta := float64(params.Delta)
			if math.Abs(delta) > *e.cfg.HiringVelocityMax {
				violations = append(violations, "constraints.hiring_velocity_max")
			}
		}
	}

	return violations
}

// CheckInvariants implements §4.5's post-commit invariant check: these
// alarms are informational and never rewind history.
func (e *Engine) CheckInvariants(state companystate.CompanyState) []string {
	var violated []string
	if state.Cash < 0 {
		violated = append(violated, "cash_negative")
	}
	if e.cfg.MinRunwayMonths != nil && state.RunwayMonths() < *e.cfg.MinRunwayMonths {
		violated = append(violated, "runway_too_low")
	}
	if e.cfg.SLATargetMin != nil && state.ServiceLevel < *e.cfg.SLATargetMin {
		violated = append(violated, "service_level_below_sla")
	}
	return violated
}
