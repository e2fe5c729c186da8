// Package ledger implements the Audit Ledger (C6): an append-only, per-run
// sequence of signed entries chained by hash, idempotent on entry ID, and
// exportable as a self-verifying bundle.
package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chronicle-sim/core/crypto"
	"github.com/chronicle-sim/core/simerr"
	"github.com/chronicle-sim/core/storage"

	"lukechampine.com/blake3"
)

// Entry is one signed, chained record in a run's ledger.
type Entry struct {
	ID            string         `json:"id"`
	RunID         string         `json:"run_id"`
	Sequence      uint64         `json:"sequence"`
	SimTime       int64          `json:"sim_time"`
	EntryType     string         `json:"entry_type"`
	AgentRole     string         `json:"agent_role,omitempty"`
	Data          map[string]any `json:"data"`
	RecordedAt    time.Time      `json:"recorded_at"`
	PrevSignature []byte         `json:"prev_signature"`
	Signature     []byte         `json:"signature"`
}

// canonicalBytes returns the byte sequence that gets signed: everything
// except the signature itself, JSON-encoded with sorted map keys (the
// encoding/json guarantee this package relies on throughout).
func (e Entry) canonicalBytes() ([]byte, error) {
	type canonical struct {
		ID            string         `json:"id"`
		RunID         string         `json:"run_id"`
		Sequence      uint64         `json:"sequence"`
		SimTime       int64          `json:"sim_time"`
		EntryType     string         `json:"entry_type"`
		AgentRole     string         `json:"agent_role,omitempty"`
		Data          map[string]any `json:"data"`
		RecordedAt    time.Time      `json:"recorded_at"`
		PrevSignature []byte         `json:"prev_signature"`
	}
	return json.Marshal(canonical{
		ID:            e.ID,
		RunID:         e.RunID,
		Sequence:      e.Sequence,
		SimTime:       e.SimTime,
		EntryType:     e.EntryType,
		AgentRole:     e.AgentRole,
		Data:          e.Data,
		RecordedAt:    e.RecordedAt,
		PrevSignature: e.PrevSignature,
	})
}

func (e Entry) digest() ([32]byte, error) {
	b, err := e.canonicalBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(b), nil
}

// runState is the in-process bookkeeping a Ledger keeps per run: the
// dense sequence counter and last signature, plus a mutex so concurrent
// Append calls for the same run never race on either.
type runState struct {
	mu       sync.Mutex
	lastSig  []byte
	nextSeq  uint64
	idSeen   map[string]Entry
	loadedDB bool
}

// Ledger appends, persists, verifies, and exports audit entries for many
// concurrent runs, each isolated under its own key prefix and its own
// per-run lock.
type Ledger struct {
	db  storage.Database
	key *crypto.SigningKey

	mu   sync.Mutex
	runs map[string]*runState
}

// New constructs a Ledger backed by db and signing with key. Every Append
// call is signed with this key; Export embeds the corresponding public key
// so a verifier never needs access to the key itself.
func New(db storage.Database, key *crypto.SigningKey) *Ledger {
	return &Ledger{
		db:   db,
		key:  key,
		runs: make(map[string]*runState),
	}
}

func entryKey(runID string, sequence uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sequence)
	return []byte(fmt.Sprintf("ledger/%s/seq/%s", runID, hex.EncodeToString(buf[:])))
}

func runPrefix(runID string) []byte {
	return []byte(fmt.Sprintf("ledger/%s/seq/", runID))
}

func idIndexKey(runID, id string) []byte {
	return []byte(fmt.Sprintf("ledger/%s/id/%s", runID, id))
}

func (l *Ledger) state(runID string) *runState {
	l.mu.Lock()
	defer l.mu.Unlock()
	rs, ok := l.runs[runID]
	if !ok {
		rs = &runState{idSeen: make(map[string]Entry)}
		l.runs[runID] = rs
	}
	return rs
}

// hydrate loads a run's existing entries from storage on first touch, so
// a Ledger resumed against a populated database picks up the correct
// sequence counter and idempotency index instead of starting over.
func (l *Ledger) hydrate(runID string, rs *runState) error {
	if rs.loadedDB {
		return nil
	}
	rs.loadedDB = true
	raw, err := l.db.Iterate(runPrefix(runID))
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "ledger: load existing entries", err)
	}
	for _, b := range raw {
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return simerr.Wrap(simerr.KindIntegrityFailure, "ledger: decode stored entry", err)
		}
		rs.idSeen[e.ID] = e
		if e.Sequence+1 > rs.nextSeq {
			rs.nextSeq = e.Sequence + 1
		}
		rs.lastSig = e.Signature
	}
	return nil
}

// Append records a new entry for runID. Idempotent on data's "id" key: if
// an entry with that ID was already appended to this run, Append returns
// the original entry unchanged rather than creating a duplicate — an
// agent's retried proposal never double-counts in the audit trail.
func (l *Ledger) Append(runID string, simTime int64, entryType string, data map[string]any, agentRole string) (Entry, error) {
	id, _ := data["id"].(string)
	if id == "" {
		return Entry{}, simerr.New(simerr.KindInvalidInput, "ledger: entry data must carry a non-empty \"id\"")
	}

	rs := l.state(runID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := l.hydrate(runID, rs); err != nil {
		return Entry{}, err
	}

	if existing, ok := rs.idSeen[id]; ok {
		return existing, nil
	}

	entry := Entry{
		ID:            id,
		RunID:         runID,
		Sequence:      rs.nextSeq,
		SimTime:       simTime,
		EntryType:     entryType,
		AgentRole:     agentRole,
		Data:          data,
		RecordedAt:    timeNow(),
		PrevSignature: append([]byte(nil), rs.lastSig...),
	}

	digest, err := entry.digest()
	if err != nil {
		return Entry{}, simerr.Wrap(simerr.KindIntegrityFailure, "ledger: canonicalize entry", err)
	}
	sig, err := l.key.Sign(digest)
	if err != nil {
		return Entry{}, simerr.Wrap(simerr.KindIntegrityFailure, "ledger: sign entry", err)
	}
	entry.Signature = sig

	encoded, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, simerr.Wrap(simerr.KindIntegrityFailure, "ledger: encode entry", err)
	}
	if err := l.db.Put(entryKey(runID, entry.Sequence), encoded); err != nil {
		return Entry{}, simerr.Wrap(simerr.KindExternalFailure, "ledger: persist entry", err)
	}
	if err := l.db.Put(idIndexKey(runID, id), encoded); err != nil {
		return Entry{}, simerr.Wrap(simerr.KindExternalFailure, "ledger: persist idempotency index", err)
	}

	rs.idSeen[id] = entry
	rs.nextSeq++
	rs.lastSig = sig

	return entry, nil
}

// timeNow is overridden in tests so RecordedAt is reproducible; production
// code always uses the wall clock.
var timeNow = time.Now

// HasEntry reports whether an entry with the given ID was already
// appended to runID, without paying for a full hydrate-and-scan. It
// consults only the ledger's idempotency index; the engine keeps its own
// record of applied action IDs and does not call it.
func (l *Ledger) HasEntry(runID, id string) (bool, error) {
	ok, err := l.db.Has(idIndexKey(runID, id))
	if err != nil {
		return false, simerr.Wrap(simerr.KindExternalFailure, "ledger: check idempotency index", err)
	}
	return ok, nil
}

// LoadEntries returns every entry appended to runID, in sequence order.
// Each returned entry carries its own copy of the top-level Data map, so
// setting a key on it does not alter the ledger's stored entry.
func (l *Ledger) LoadEntries(runID string) ([]Entry, error) {
	rs := l.state(runID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := l.hydrate(runID, rs); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rs.idSeen))
	for _, e := range rs.idSeen {
		data := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			data[k] = v
		}
		e.Data = data
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries, nil
}

// VerifyChain checks that every entry's prev_signature matches the
// previous entry's signature and that every signature verifies under the
// ledger's public key, reporting the first break found (if any).
func (l *Ledger) VerifyChain(runID string) error {
	entries, err := l.LoadEntries(runID)
	if err != nil {
		return err
	}
	pub := l.key.PublicKeyBytes()
	var prevSig []byte
	for i, e := range entries {
		if e.Sequence != uint64(i) {
			return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("ledger: sequence gap at index %d (entry sequence %d)", i, e.Sequence))
		}
		if string(e.PrevSignature) != string(prevSig) {
			return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("ledger: broken chain at sequence %d", e.Sequence))
		}
		digest, err := e.digest()
		if err != nil {
			return simerr.Wrap(simerr.KindIntegrityFailure, "ledger: canonicalize entry for verification", err)
		}
		if !crypto.Verify(pub, digest, e.Signature) {
			return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("ledger: invalid signature at sequence %d", e.Sequence))
		}
		prevSig = e.Signature
	}
	return nil
}

// Bundle is the self-contained, independently verifiable export of a
// run's ledger: every entry, the signer's public key, and a final
// signature over the whole bundle so a recipient can confirm it was
// exported (not assembled) by this ledger.
type Bundle struct {
	RunID           string    `json:"run_id"`
	Entries         []Entry   `json:"entries"`
	EntryCount      int       `json:"entry_count"`
	PublicKey       []byte    `json:"public_key"`
	Fingerprint     string    `json:"fingerprint"`
	ExportedAt      time.Time `json:"exported_at"`
	BundleSignature []byte    `json:"bundle_signature"`
}

// ExportBundle verifies the run's chain, then signs and returns the
// exportable bundle described on the Bundle type.
func (l *Ledger) ExportBundle(runID string) (Bundle, error) {
	if err := l.VerifyChain(runID); err != nil {
		return Bundle{}, err
	}
	entries, err := l.LoadEntries(runID)
	if err != nil {
		return Bundle{}, err
	}
	pub := l.key.PublicKeyBytes()
	fp, err := crypto.Fingerprint("audit", pub)
	if err != nil {
		return Bundle{}, simerr.Wrap(simerr.KindIntegrityFailure, "ledger: fingerprint export key", err)
	}

	bundle := Bundle{
		RunID:       runID,
		Entries:     entries,
		EntryCount:  len(entries),
		PublicKey:   pub,
		Fingerprint: fp,
		ExportedAt:  timeNow(),
	}

	signable, err := json.Marshal(struct {
		RunID       string    `json:"run_id"`
		Entries     []Entry   `json:"entries"`
		EntryCount  int       `json:"entry_count"`
		PublicKey   []byte    `json:"public_key"`
		Fingerprint string    `json:"fingerprint"`
		ExportedAt  time.Time `json:"exported_at"`
	}{bundle.RunID, bundle.Entries, bundle.EntryCount, bundle.PublicKey, bundle.Fingerprint, bundle.ExportedAt})
	if err != nil {
		return Bundle{}, simerr.Wrap(simerr.KindIntegrityFailure, "ledger: canonicalize bundle", err)
	}
	digest := blake3.Sum256(signable)
	sig, err := l.key.Sign(digest)
	if err != nil {
		return Bundle{}, simerr.Wrap(simerr.KindIntegrityFailure, "ledger: sign bundle", err)
	}
	bundle.BundleSignature = sig
	return bundle, nil
}

// VerifyBundle independently checks a Bundle's internal chain and its
// bundle-level signature, the validation a third party runs after
// receiving an export without access to this Ledger.
func VerifyBundle(b Bundle) error {
	var prevSig []byte
	for i, e := range b.Entries {
		if e.Sequence != uint64(i) {
			return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("ledger: sequence gap at index %d", i))
		}
		if string(e.PrevSignature) != string(prevSig) {
			return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("ledger: broken chain at sequence %d", e.Sequence))
		}
		digest, err := e.digest()
		if err != nil {
			return simerr.Wrap(simerr.KindIntegrityFailure, "ledger: canonicalize entry for verification", err)
		}
		if !crypto.Verify(b.PublicKey, digest, e.Signature) {
			return simerr.New(simerr.KindIntegrityFailure, fmt.Sprintf("ledger: invalid entry signature at sequence %d", e.Sequence))
		}
		prevSig = e.Signature
	}
	if b.EntryCount != len(b.Entries) {
		return simerr.New(simerr.KindIntegrityFailure, "ledger: entry_count does not match entries")
	}

	signable, err := json.Marshal(struct {
		RunID       string    `json:"run_id"`
		Entries     []Entry   `json:"entries"`
		EntryCount  int       `json:"entry_count"`
		PublicKey   []byte    `json:"public_key"`
		Fingerprint string    `json:"fingerprint"`
		ExportedAt  time.Time `json:"exported_at"`
	}{b.RunID, b.Entries, b.EntryCount, b.PublicKey, b.Fingerprint, b.ExportedAt})
	if err != nil {
		return simerr.Wrap(simerr.KindIntegrityFailure, "ledger: canonicalize bundle", err)
	}
	digest := blake3.Sum256(signable)
	if !crypto.Verify(b.PublicKey, digest, b.BundleSignature) {
		return simerr.New(simerr.KindIntegrityFailure, "ledger: invalid bundle signature")
	}
	return nil
}
