// Package timelock implements the Time-Lock: a provably future-blind view
// over events and their staged signals, presented to decision agents.
// Encryption here is information-hiding, not network security — it
// prevents a future event's content from leaking through serialization or
// logs, and an authenticated cipher makes tampering with a still-locked
// event detectable once it is eventually unlocked.
package timelock

import "time"

// Signal is a piece of information attached to an Event that becomes
// observable at its own release time, independent of whether the parent
// Event itself has been unlocked yet.
type Signal struct {
	ReleaseTime time.Time      `json:"release_time"`
	Type        string         `json:"type"`
	Content     map[string]any `json:"content"`
}

// Event is an input to the simulation timeline: a shock with a wall-clock
// timestamp, a duration over which it stays active, and parameter impacts
// the engine applies once the event crosses into the present.
type Event struct {
	Timestamp        time.Time          `json:"timestamp"`
	EventType        string             `json:"event_type"`
	Severity         float64            `json:"severity"`
	DurationDays     float64            `json:"duration_days"`
	AffectedAreas    []string           `json:"affected_areas"`
	Signals          []Signal           `json:"signals"`
	ParameterImpacts map[string]float64 `json:"parameter_impacts"`
}

// EncryptedEvent is the run-visible rendering of an Event: future events
// are replaced by an opaque ciphertext while their timestamp remains
// public, so the existence and timing of a future event is visible but
// its content is not. Past and present events remain plaintext.
type EncryptedEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Encrypted  bool      `json:"encrypted"`
	Ciphertext []byte    `json:"ciphertext,omitempty"`
	Plain      *Event    `json:"plain,omitempty"`
}
