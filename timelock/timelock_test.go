package timelock

import (
	"testing"
	"time"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestEncryptFutureEventsHidesFutureContent(t *testing.T) {
	key := mustKey(t)
	current := time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), EventType: "past"},
		{Timestamp: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), EventType: "future"},
	}

	encrypted, err := EncryptFutureEvents(events, current.Unix(), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encrypted[0].Encrypted {
		t.Fatal("past event should be plaintext")
	}
	if !encrypted[1].Encrypted {
		t.Fatal("future event should be encrypted")
	}
	if encrypted[1].Plain != nil {
		t.Fatal("future event must not carry a plaintext payload")
	}

	accessible := GetAccessibleEvents(encrypted, current.Unix())
	if len(accessible) != 1 || accessible[0].EventType != "past" {
		t.Fatalf("expected only the past event accessible, got %+v", accessible)
	}
}

func TestDecryptEventRejectsTamperedCiphertext(t *testing.T) {
	key := mustKey(t)
	current := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	future := []Event{{Timestamp: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), EventType: "shock"}}

	encrypted, err := EncryptFutureEvents(future, current.Unix(), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	encrypted[0].Ciphertext[len(encrypted[0].Ciphertext)-1] ^= 0xFF

	if _, err := DecryptEvent(encrypted[0], key); err == nil {
		t.Fatal("expected tampered ciphertext to be rejected")
	}
}

func TestSignalVisibleBeforeParentEvent(t *testing.T) {
	key := mustKey(t)
	eventTime := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	earlySignalTime := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	lateSignalTime := eventTime

	events := []Event{{
		Timestamp: eventTime,
		EventType: "funding_round",
		Signals: []Signal{
			{ReleaseTime: earlySignalTime, Type: "rumor", Content: map[string]any{"confidence": 0.3}},
			{ReleaseTime: lateSignalTime, Type: "confirmed", Content: map[string]any{"confidence": 1.0}},
		},
	}}

	mid := time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC)
	encrypted, err := EncryptFutureEvents(events, mid.Unix(), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	ctx, err := BuildInformationContext(encrypted, mid.Unix(), 7, key, nil, nil)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(ctx.ObservableEvents) != 0 {
		t.Fatalf("event should not be observable yet, got %+v", ctx.ObservableEvents)
	}
	found := false
	for _, signals := range ctx.ObservableSignalsByKey {
		for _, sig := range signals {
			if sig.Type == "rumor" {
				found = true
			}
			if sig.Type == "confirmed" {
				t.Fatal("late signal should not be visible yet")
			}
		}
	}
	if !found {
		t.Fatal("expected the early-released signal to be visible before its parent event")
	}

	later := eventTime
	encryptedLater, err := EncryptFutureEvents(events, later.Unix(), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ctx2, err := BuildInformationContext(encryptedLater, later.Unix(), 10, key, nil, nil)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(ctx2.ObservableEvents) != 1 {
		t.Fatalf("expected the event to be observable once current_time reaches it, got %+v", ctx2.ObservableEvents)
	}
}

func TestVerifyNoFutureAccessRejectsFutureTimestamp(t *testing.T) {
	current := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	type nested struct {
		Timestamp time.Time
	}
	payload := struct {
		Label string
		Inner nested
	}{
		Label: "ok",
		Inner: nested{Timestamp: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	if err := VerifyNoFutureAccess(payload, current); err == nil {
		t.Fatal("expected future timestamp to be rejected")
	}
}

func TestVerifyNoFutureAccessAcceptsPastOnly(t *testing.T) {
	current := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC).Unix()
	payload := map[string]any{
		"timestamp": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"nested": map[string]any{
			"date": "2020-05-01T00:00:00Z",
		},
	}
	if err := VerifyNoFutureAccess(payload, current); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyNoFutureAccessRejectsFutureMapValue(t *testing.T) {
	current := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	payload := map[string]any{
		"time": time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC).Unix(),
	}
	if err := VerifyNoFutureAccess(payload, current); err == nil {
		t.Fatal("expected future unix timestamp in a map to be rejected")
	}
}
