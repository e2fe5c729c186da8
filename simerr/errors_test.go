package simerr

import (
	"errors"
	"testing"
)

func TestOfKindMatchesWrappedError(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(KindIntegrityFailure, "ledger chain broken", cause)

	if !OfKind(err, KindIntegrityFailure) {
		t.Fatalf("expected OfKind to match KindIntegrityFailure")
	}
	if OfKind(err, KindInvalidInput) {
		t.Fatalf("expected OfKind not to match a different kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to unwrap to the cause")
	}
}

func TestIsMatchesSameKindDifferentReason(t *testing.T) {
	a := New(KindPolicyDeny, "spend limit exceeded")
	b := New(KindPolicyDeny, "hiring velocity exceeded")

	if !errors.Is(a, b) {
		t.Fatalf("expected errors.Is to match on Kind regardless of Reason")
	}

	c := New(KindPolicyEscalate, "impact above threshold")
	if errors.Is(a, c) {
		t.Fatalf("expected errors.Is not to match a different Kind")
	}
}

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	withCause := Wrap(KindExternalFailure, "industry module failed", errors.New("boom"))
	if got := withCause.Error(); got == "" {
		t.Fatalf("expected non-empty error message")
	}

	withoutCause := New(KindTransitionInvalid, "negative cash")
	if got := withoutCause.Error(); got != "transition_invalid: negative cash" {
		t.Fatalf("Error() = %q, want %q", got, "transition_invalid: negative cash")
	}
}
