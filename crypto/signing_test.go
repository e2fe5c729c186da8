package crypto

import (
	"testing"

	"lukechampine.com/blake3"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := blake3.Sum256([]byte("entry bytes"))
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(key.PublicKeyBytes(), digest, sig) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	key, _ := GenerateSigningKey()
	digest := blake3.Sum256([]byte("entry bytes"))
	sig, _ := key.Sign(digest)

	tampered := blake3.Sum256([]byte("different bytes"))
	if Verify(key.PublicKeyBytes(), tampered, sig) {
		t.Fatal("expected verification to fail for tampered digest")
	}
}

func TestSigningKeyFromBytesRoundTrip(t *testing.T) {
	key, _ := GenerateSigningKey()
	restored, err := SigningKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	digest := blake3.Sum256([]byte("x"))
	sig, _ := key.Sign(digest)
	if !Verify(restored.PublicKeyBytes(), digest, sig) {
		t.Fatal("restored key did not reproduce the same public key")
	}
}

func TestFingerprintRoundTrip(t *testing.T) {
	key, _ := GenerateSigningKey()
	fp, err := Fingerprint("audit", key.PublicKeyBytes())
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	ok, err := VerifyFingerprint("audit", fp, key.PublicKeyBytes())
	if err != nil {
		t.Fatalf("verify fingerprint: %v", err)
	}
	if !ok {
		t.Fatal("expected fingerprint to verify")
	}

	other, _ := GenerateSigningKey()
	ok, err = VerifyFingerprint("audit", fp, other.PublicKeyBytes())
	if err != nil {
		t.Fatalf("verify fingerprint: %v", err)
	}
	if ok {
		t.Fatal("expected fingerprint mismatch for a different key")
	}
}
