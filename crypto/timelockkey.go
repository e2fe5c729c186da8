package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// TimeLockKeyFile is the on-disk envelope for a run's Time-Lock symmetric
// key. Fields mirror the layout of an encrypted keystore file: a KDF salt
// and parameters, a cipher nonce, and the wrapped key ciphertext. The
// passphrase defaults to empty (the Time-Lock key is not operator
// secret-material, only something that must not appear in logs or audit
// entries by accident); a non-empty passphrase may still be supplied by a
// caller that wants the file unreadable without it.
type TimeLockKeyFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	ScryptN    int    `json:"scrypt_n"`
	ScryptR    int    `json:"scrypt_r"`
	ScryptP    int    `json:"scrypt_p"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const (
	timeLockKeyFileVersion = 1
	scryptN                = 1 << 15
	scryptR                = 8
	scryptP                = 1
	scryptKeyLen           = chacha20poly1305.KeySize
)

// SaveTimeLockKey encrypts key under a scrypt-derived wrapping key and
// atomically writes it to path, following the teacher keystore's
// write-to-temp-then-rename idiom so a crash mid-write never leaves a
// half-written key file where a checkpoint restore would find it.
func SaveTimeLockKey(path string, key []byte, passphrase string) error {
	if len(key) == 0 {
		return errors.New("crypto: empty time-lock key")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("crypto: create keystore dir: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("crypto: generate salt: %w", err)
	}
	wrapKey, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("crypto: derive wrap key: %w", err)
	}
	aead, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return fmt.Errorf("crypto: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("crypto: generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, key, nil)

	envelope := TimeLockKeyFile{
		Version:    timeLockKeyFileVersion,
		Salt:       salt,
		ScryptN:    scryptN,
		ScryptR:    scryptR,
		ScryptP:    scryptP,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("crypto: encode keystore envelope: %w", err)
	}

	tmpDir, err := os.MkdirTemp(dir, "timelockkey-")
	if err != nil {
		return fmt.Errorf("crypto: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpFile := filepath.Join(tmpDir, filepath.Base(path))
	if err := os.WriteFile(tmpFile, payload, 0o600); err != nil {
		return fmt.Errorf("crypto: write temp keystore: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("crypto: rename keystore into place: %w", err)
	}
	return nil
}

// LoadTimeLockKey decrypts a key file written by SaveTimeLockKey.
func LoadTimeLockKey(path string, passphrase string) ([]byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: read keystore: %w", err)
	}
	var envelope TimeLockKeyFile
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("crypto: decode keystore envelope: %w", err)
	}
	if envelope.Version != timeLockKeyFileVersion {
		return nil, fmt.Errorf("crypto: unsupported keystore version %d", envelope.Version)
	}
	wrapKey, err := scrypt.Key([]byte(passphrase), envelope.Salt, envelope.ScryptN, envelope.ScryptR, envelope.ScryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive wrap key: %w", err)
	}
	aead, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	key, err := aead.Open(nil, envelope.Nonce, envelope.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt keystore (wrong passphrase or corrupted file): %w", err)
	}
	return key, nil
}
