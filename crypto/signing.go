// Package crypto provides the asymmetric signing keys behind the Audit
// Ledger's hash/signature chain, and the at-rest envelope used to persist
// the Time-Lock's run-scoped symmetric key. Signing is secp256k1 via
// go-ethereum's crypto package; the ledger's human-readable fingerprint
// is derived from the same public key. The Time-Lock key itself is a
// random symmetric key, not a secp256k1 key.
package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SigningKey is a run's asymmetric key pair for signing audit entries and
// export bundles.
type SigningKey struct {
	private *ecdsa.PrivateKey
}

// GenerateSigningKey creates a fresh secp256k1 key pair.
func GenerateSigningKey() (*SigningKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate signing key: %w", err)
	}
	return &SigningKey{private: key}, nil
}

// SigningKeyFromBytes restores a key pair from its raw private scalar, as
// produced by Bytes.
func SigningKeyFromBytes(b []byte) (*SigningKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("crypto: restore signing key: %w", err)
	}
	return &SigningKey{private: key}, nil
}

// Bytes returns the raw private scalar. Callers must never log or persist
// this value outside of an encrypted keystore.
func (k *SigningKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.private)
}

// PublicKeyBytes returns the uncompressed public key, the form verifiers
// need to call Verify.
func (k *SigningKey) PublicKeyBytes() []byte {
	return ethcrypto.FromECDSAPub(&k.private.PublicKey)
}

// Sign produces a signature over a 32-byte digest (the ledger always signs
// a BLAKE3 digest of the canonical entry bytes, never raw content). The
// trailing recovery byte go-ethereum appends is stripped, since entries
// carry the public key out of band in the ledger's export bundle and do
// not need public-key recovery.
func (k *SigningKey) Sign(digest [32]byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest[:], k.private)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig[:64], nil
}

// Verify checks a signature produced by Sign against a public key and
// digest.
func Verify(publicKey []byte, digest [32]byte, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}
	return ethcrypto.VerifySignature(publicKey, digest[:], signature)
}

// Fingerprint renders a public key as a bech32, checksum-protected,
// human-copyable string (e.g. "audit1...") for out-of-band comparison
// against an export bundle's embedded public key.
func Fingerprint(hrp string, publicKey []byte) (string, error) {
	digest := ethcrypto.Keccak256(publicKey)
	conv, err := bech32.ConvertBits(digest[:20], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("crypto: convert fingerprint bits: %w", err)
	}
	encoded, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("crypto: encode fingerprint: %w", err)
	}
	return encoded, nil
}

// VerifyFingerprint reports whether the fingerprint was produced by
// Fingerprint for the given public key, decoding and re-deriving rather
// than doing a literal string comparison so a caller can validate a
// fingerprint it received out of band.
func VerifyFingerprint(hrp, fingerprint string, publicKey []byte) (bool, error) {
	gotHRP, data, err := bech32.Decode(fingerprint)
	if err != nil {
		return false, fmt.Errorf("crypto: decode fingerprint: %w", err)
	}
	if gotHRP != hrp {
		return false, nil
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return false, fmt.Errorf("crypto: convert fingerprint bits: %w", err)
	}
	digest := ethcrypto.Keccak256(publicKey)
	if len(conv) != 20 {
		return false, nil
	}
	for i := range conv {
		if conv[i] != digest[i] {
			return false, nil
		}
	}
	return true, nil
}
