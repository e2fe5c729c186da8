package companystate

import (
	"time"

	"github.com/chronicle-sim/core/simerr"
)

// Transition pairs a before/after CompanyState with the action that
// produced it, for audit and invariant checking.
type Transition struct {
	Before    CompanyState
	After     CompanyState
	Action    string
	AgentRole string
	Reason    string
	WallTime  time.Time
}

// Validate enforces the transition-validity invariants from the data
// model: after.cash must stay non-negative, headcount non-negative,
// version must advance by exactly one, and time must not run backwards.
// A rejected transition is a no-op for the caller: the previous state is
// retained and this function's error is the only effect.
func Validate(t Transition) error {
	if t.After.Cash < 0 {
		return simerr.New(simerr.KindTransitionInvalid, "resulting cash would be negative")
	}
	if t.After.Headcount < 0 {
		return simerr.New(simerr.KindTransitionInvalid, "resulting headcount would be negative")
	}
	if t.After.Version != t.Before.Version+1 {
		return simerr.New(simerr.KindTransitionInvalid, "version must advance by exactly one")
	}
	if t.After.Timestamp.Before(t.Before.Timestamp) {
		return simerr.New(simerr.KindTransitionInvalid, "resulting timestamp must not precede the prior state")
	}
	return nil
}
