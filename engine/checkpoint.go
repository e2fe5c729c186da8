package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/crypto"
	"github.com/chronicle-sim/core/rng"
	"github.com/chronicle-sim/core/simerr"
	"github.com/chronicle-sim/core/storage"

	"lukechampine.com/blake3"
)

const checkpointFormatVersion = 1

// eventCursor is the subset of the engine's event bookkeeping a
// checkpoint must capture to resume identically: which events have
// already activated (applied their parameter impacts) and which remain
// active right now. Indices are positions into the Timeline.Events slice
// the engine was constructed with, which a restore must be given again.
type eventCursor struct {
	Activated    []int `json:"activated"`
	Active       []int `json:"active"`
	ExpiredOrder []int `json:"expired_order"`
}

// checkpointEnvelope is the self-describing, checksummed serialization of
// a Checkpoint. Checksum covers every other field and is verified before
// any of them are used, so a corrupted checkpoint is rejected outright
// rather than partially applied.
type checkpointEnvelope struct {
	FormatVersion int                       `json:"format_version"`
	RunID         string                    `json:"run_id"`
	Name          string                    `json:"name"`
	State         companystate.CompanyState `json:"state"`
	CurrentTime   int64                     `json:"current_time"`
	CurrentTick   uint64                    `json:"current_tick"`
	RNGState      []byte                    `json:"rng_state"`
	EventCursor   eventCursor               `json:"event_cursor"`
	Checksum      []byte                    `json:"checksum"`
}

func (c checkpointEnvelope) checksumInput() ([]byte, error) {
	type unsummed struct {
		FormatVersion int                       `json:"format_version"`
		RunID         string                    `json:"run_id"`
		Name          string                    `json:"name"`
		State         companystate.CompanyState `json:"state"`
		CurrentTime   int64                     `json:"current_time"`
		CurrentTick   uint64                    `json:"current_tick"`
		RNGState      []byte                    `json:"rng_state"`
		EventCursor   eventCursor               `json:"event_cursor"`
	}
	return json.Marshal(unsummed{
		FormatVersion: c.FormatVersion,
		RunID:         c.RunID,
		Name:          c.Name,
		State:         c.State,
		CurrentTime:   c.CurrentTime,
		CurrentTick:   c.CurrentTick,
		RNGState:      c.RNGState,
		EventCursor:   c.EventCursor,
	})
}

func checkpointKey(runID, name string) []byte {
	return []byte(fmt.Sprintf("checkpoint/%s/%s", runID, name))
}

func timeLockKeyPath(keyDir, runID, name string) string {
	return filepath.Join(keyDir, fmt.Sprintf("%s.%s.timelockkey", runID, name))
}

// CreateCheckpoint captures (state, current_time, rng_state, event_cursor)
// sufficient to resume identical execution, persists the checksummed
// envelope under db at checkpoint/<run_id>/<name>, and writes the run's
// Time-Lock key to a sibling keystore file under keyDir so future events
// remain decipherable across a process restart.
func (e *Engine) CreateCheckpoint(db storage.Database, keyDir, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cursor := eventCursor{
		Activated:    sortedKeys(e.activated),
		Active:       sortedKeys(e.active),
		ExpiredOrder: append([]int(nil), e.expiredOrder...),
	}

	envelope := checkpointEnvelope{
		FormatVersion: checkpointFormatVersion,
		RunID:         e.runID,
		Name:          name,
		State:         e.state,
		CurrentTime:   e.currentTime.Unix(),
		CurrentTick:   e.currentTick,
		RNGState:      e.source.State(),
		EventCursor:   cursor,
	}
	input, err := envelope.checksumInput()
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "engine: canonicalize checkpoint", err)
	}
	sum := blake3.Sum256(input)
	envelope.Checksum = sum[:]

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "engine: encode checkpoint", err)
	}
	if err := db.Put(checkpointKey(e.runID, name), encoded); err != nil {
		return simerr.Wrap(simerr.KindExternalFailure, "engine: persist checkpoint", err)
	}

	if err := crypto.SaveTimeLockKey(timeLockKeyPath(keyDir, e.runID, name), e.timelockKey, ""); err != nil {
		return simerr.Wrap(simerr.KindExternalFailure, "engine: persist time-lock key", err)
	}
	return nil
}

// RestoreCheckpoint loads and verifies a checkpoint's checksum before
// touching any engine state, satisfying "corrupted input MUST be
// rejected": a single flipped byte anywhere in the envelope surfaces as
// an IntegrityFailure and leaves the engine untouched.
func (e *Engine) RestoreCheckpoint(db storage.Database, keyDir, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := db.Get(checkpointKey(e.runID, name))
	if err != nil {
		return simerr.Wrap(simerr.KindExternalFailure, "engine: load checkpoint", err)
	}
	var envelope checkpointEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "engine: decode checkpoint", err)
	}

	claimedChecksum := envelope.Checksum
	envelope.Checksum = nil
	input, err := envelope.checksumInput()
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "engine: canonicalize checkpoint", err)
	}
	sum := blake3.Sum256(input)
	if string(sum[:]) != string(claimedChecksum) {
		return simerr.New(simerr.KindIntegrityFailure, "engine: checkpoint checksum mismatch")
	}
	if envelope.FormatVersion != checkpointFormatVersion {
		return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("engine: unsupported checkpoint format %d", envelope.FormatVersion))
	}

	key, err := crypto.LoadTimeLockKey(timeLockKeyPath(keyDir, e.runID, name), "")
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "engine: load time-lock key", err)
	}

	source, err := rng.Restore(envelope.RNGState)
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "engine: restore rng state", err)
	}

	e.state = envelope.State
	e.currentTime = time.Unix(envelope.CurrentTime, 0).UTC()
	e.currentTick = envelope.CurrentTick
	e.source = source
	e.timelockKey = key
	e.activated = toSet(envelope.EventCursor.Activated)
	e.active = toSet(envelope.EventCursor.Active)
	e.expiredOrder = append([]int(nil), envelope.EventCursor.ExpiredOrder...)

	return nil
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func toSet(indices []int) map[int]bool {
	out := make(map[int]bool, len(indices))
	for _, i := range indices {
		out[i] = true
	}
	return out
}
