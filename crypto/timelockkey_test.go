package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestTimeLockKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-1.timelockkey")
	key := bytes.Repeat([]byte{0x42}, 32)

	if err := SaveTimeLockKey(path, key, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadTimeLockKey(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatal("round-tripped key does not match original")
	}
}

func TestTimeLockKeyWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-2.timelockkey")
	key := bytes.Repeat([]byte{0x7}, 32)

	if err := SaveTimeLockKey(path, key, "correct-horse"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadTimeLockKey(path, "wrong-passphrase"); err == nil {
		t.Fatal("expected error decrypting with wrong passphrase")
	}
}

func TestTimeLockKeyCorruptedFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-3.timelockkey")
	key := bytes.Repeat([]byte{0x1}, 32)
	if err := SaveTimeLockKey(path, key, ""); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Flip a byte in the persisted file.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[len(data)-5] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadTimeLockKey(path, ""); err == nil {
		t.Fatal("expected corrupted keystore to be rejected")
	}
}
