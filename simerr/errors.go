// Package simerr defines the error kinds distinguished by the simulation
// core, per the error handling design: policy and transition errors are
// carried as values in per-action results, never thrown across the tick
// loop, while integrity failures are returned for the caller to halt the
// affected run.
package simerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the core distinguishes.
type Kind string

const (
	// KindInvalidInput covers blueprint/timeline schema or ordering
	// failures, detected at construction time.
	KindInvalidInput Kind = "invalid_input"
	// KindPolicyDeny covers an action that violates a hard constraint.
	KindPolicyDeny Kind = "policy_deny"
	// KindPolicyEscalate covers an action that exceeds an approval
	// threshold or risk appetite.
	KindPolicyEscalate Kind = "policy_escalate"
	// KindTransitionInvalid covers a candidate state transition that
	// would violate a state invariant (e.g. negative cash).
	KindTransitionInvalid Kind = "transition_invalid"
	// KindIntegrityFailure covers a broken ledger chain or a corrupted
	// checkpoint. Fatal for the affected run only.
	KindIntegrityFailure Kind = "integrity_failure"
	// KindAgentTimeout covers an agent that did not return a proposal
	// before its per-cycle deadline.
	KindAgentTimeout Kind = "agent_timeout"
	// KindExternalFailure covers an industry-module, cipher or storage
	// error. The engine returns it to its caller with this kind; it is not
	// converted to KindTransitionInvalid.
	KindExternalFailure Kind = "external_failure"
)

// Error is a typed error carrying one of the Kind values above plus a
// human-readable reason and optional wrapped cause.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, simerr.New(KindPolicyDeny, "")) matches any reason string.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// OfKind reports whether err is (or wraps) an *Error of the given kind.
func OfKind(err error, kind Kind) bool {
	var target *Error
	if !errors.As(err, &target) {
		return false
	}
	return target.Kind == kind
}
