package ledger

import (
	"testing"

	"github.com/chronicle-sim/core/crypto"
	"github.com/chronicle-sim/core/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	key, err := crypto.GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	return New(storage.NewMemDB(), key)
}

func TestAppendChainsSequentially(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		_, err := l.Append("run-1", int64(i), "action_applied", map[string]any{"id": idFor(i)}, "cfo")
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	entries, err := l.LoadEntries("run-1")
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Sequence != uint64(i) {
			t.Fatalf("entries[%d].Sequence = %d, want %d", i, e.Sequence, i)
		}
	}
	if err := l.VerifyChain("run-1"); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func idFor(i int) string {
	return "evt-" + string(rune('a'+i))
}

func TestAppendIsIdempotentOnID(t *testing.T) {
	l := newTestLedger(t)
	first, err := l.Append("run-1", 0, "action_applied", map[string]any{"id": "dup"}, "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := l.Append("run-1", 99, "action_applied", map[string]any{"id": "dup", "other": "field"}, "")
	if err != nil {
		t.Fatalf("append (retry): %v", err)
	}
	if first.Sequence != second.Sequence {
		t.Fatalf("retry produced a new sequence number: %d vs %d", first.Sequence, second.Sequence)
	}
	entries, err := l.LoadEntries("run-1")
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (duplicate append must not grow the ledger)", len(entries))
	}
}

func TestAppendRejectsMissingID(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Append("run-1", 0, "action_applied", map[string]any{}, ""); err == nil {
		t.Fatal("expected an error for data without an id")
	}
}

func TestVerifyChainUnaffectedByMutatingReturnedCopy(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Append("run-1", 0, "action_applied", map[string]any{"id": "a"}, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.Append("run-1", 1, "action_applied", map[string]any{"id": "b"}, ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := l.LoadEntries("run-1")
	if err != nil {
		t.Fatalf("load entries: %v", err)
	}
	entries[0].Data["id"] = "tampered"

	// Re-verification against the ledger's own store should still pass
	// because LoadEntries returns copies of each entry's Data map; the
	// mutation above only touched our local slice.
	if err := l.VerifyChain("run-1"); err != nil {
		t.Fatalf("verify chain should be unaffected by mutating a returned copy: %v", err)
	}
}

func TestExportAndVerifyBundle(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 5; i++ {
		if _, err := l.Append("run-1", int64(i), "tick_advanced", map[string]any{"id": idFor(i)}, ""); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	bundle, err := l.ExportBundle("run-1")
	if err != nil {
		t.Fatalf("export bundle: %v", err)
	}
	if bundle.EntryCount != 5 {
		t.Fatalf("EntryCount = %d, want 5", bundle.EntryCount)
	}
	if err := VerifyBundle(bundle); err != nil {
		t.Fatalf("verify bundle: %v", err)
	}

	bundle.Entries[2].EntryType = "forged"
	if err := VerifyBundle(bundle); err == nil {
		t.Fatal("expected tampered bundle entry to fail verification")
	}
}

func TestHasEntryIdempotencyCheck(t *testing.T) {
	l := newTestLedger(t)
	has, err := l.HasEntry("run-1", "never-appended")
	if err != nil {
		t.Fatalf("has entry: %v", err)
	}
	if has {
		t.Fatal("expected false for an ID never appended")
	}
	if _, err := l.Append("run-1", 0, "action_applied", map[string]any{"id": "present"}, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	has, err = l.HasEntry("run-1", "present")
	if err != nil {
		t.Fatalf("has entry: %v", err)
	}
	if !has {
		t.Fatal("expected true for an ID already appended")
	}
}

func TestSeparateRunsAreIsolated(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Append("run-a", 0, "t", map[string]any{"id": "x"}, ""); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if _, err := l.Append("run-b", 0, "t", map[string]any{"id": "x"}, ""); err != nil {
		t.Fatalf("append run-b: %v", err)
	}
	entriesA, _ := l.LoadEntries("run-a")
	entriesB, _ := l.LoadEntries("run-b")
	if len(entriesA) != 1 || len(entriesB) != 1 {
		t.Fatalf("expected one entry per run, got %d and %d", len(entriesA), len(entriesB))
	}
}

func TestLedgerRehydratesFromExistingStorage(t *testing.T) {
	key, err := crypto.GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	db := storage.NewMemDB()
	l1 := New(db, key)
	if _, err := l1.Append("run-1", 0, "t", map[string]any{"id": "a"}, ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	l2 := New(db, key)
	next, err := l2.Append("run-1", 1, "t", map[string]any{"id": "b"}, "")
	if err != nil {
		t.Fatalf("append on rehydrated ledger: %v", err)
	}
	if next.Sequence != 1 {
		t.Fatalf("Sequence = %d, want 1 (should continue from persisted state)", next.Sequence)
	}
	if err := l2.VerifyChain("run-1"); err != nil {
		t.Fatalf("verify chain after rehydration: %v", err)
	}
}
