package storage

import (
	"path/filepath"
	"testing"
)

func TestMemDBPutGetHas(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); err != ErrNotFound {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
	if ok, _ := db.Has([]byte("missing")); ok {
		t.Fatalf("Has(missing) = true, want false")
	}

	if err := db.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("Get(k1) = %q, want %q", v, "v1")
	}
	if ok, _ := db.Has([]byte("k1")); !ok {
		t.Fatalf("Has(k1) = false, want true")
	}
}

func TestMemDBIterateOrdersByKeyAndFiltersPrefix(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	entries := map[string]string{
		"prefix/b": "second",
		"prefix/a": "first",
		"prefix/c": "third",
		"other/x":  "excluded",
	}
	for k, v := range entries {
		if err := db.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	got, err := db.Iterate([]byte("prefix/"))
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if string(got[i]) != w {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], w)
		}
	}
}

func TestMemDBIterateReturnsIndependentCopies(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	if err := db.Put([]byte("k"), []byte("original")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Iterate([]byte("k"))
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	got[0][0] = 'X'

	v, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "original" {
		t.Fatalf("mutating iterate result leaked into store: got %q", v)
	}
}

func TestLevelDBPutGetHasIterate(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLevelDB(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("ledger/run-1/seq/0"), []byte("entry-0")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("ledger/run-1/seq/1"), []byte("entry-1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	v, err := db.Get([]byte("ledger/run-1/seq/0"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "entry-0" {
		t.Fatalf("Get = %q, want %q", v, "entry-0")
	}

	if ok, _ := db.Has([]byte("ledger/run-1/seq/1")); !ok {
		t.Fatalf("Has(seq/1) = false, want true")
	}
	if _, err := db.Get([]byte("missing")); err != ErrNotFound {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}

	got, err := db.Iterate([]byte("ledger/run-1/seq/"))
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}
