package timelock

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length in bytes of a run-scoped Time-Lock key.
const KeySize = chacha20poly1305.KeySize

// GenerateKey returns a fresh run-scoped symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("timelock: generate key: %w", err)
	}
	return key, nil
}

// EncryptFutureEvents rewrites a timeline: events at or before currentTime
// pass through verbatim; strictly-future events are replaced by an opaque,
// authenticated ciphertext keyed to the run, with only their timestamp
// left visible.
func EncryptFutureEvents(events []Event, currentTime int64, key []byte) ([]EncryptedEvent, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("timelock: init cipher: %w", err)
	}

	out := make([]EncryptedEvent, 0, len(events))
	for i := range events {
		ev := events[i]
		if ev.Timestamp.Unix() <= currentTime {
			plain := ev
			out = append(out, EncryptedEvent{
				Timestamp: ev.Timestamp,
				Encrypted: false,
				Plain:     &plain,
			})
			continue
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("timelock: encode event: %w", err)
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("timelock: generate nonce: %w", err)
		}
		sealed := aead.Seal(nonce, nonce, payload, nil)
		out = append(out, EncryptedEvent{
			Timestamp:  ev.Timestamp,
			Encrypted:  true,
			Ciphertext: sealed,
		})
	}
	return out, nil
}

// DecryptEvent recovers the plaintext Event behind a still-encrypted
// EncryptedEvent once its timestamp has crossed into the present. A
// tampered ciphertext is rejected by the authenticated cipher rather than
// silently producing a corrupted event.
func DecryptEvent(ee EncryptedEvent, key []byte) (Event, error) {
	if !ee.Encrypted {
		if ee.Plain == nil {
			return Event{}, fmt.Errorf("timelock: plaintext entry missing its event")
		}
		return *ee.Plain, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Event{}, fmt.Errorf("timelock: init cipher: %w", err)
	}
	nonceSize := aead.NonceSize()
	if len(ee.Ciphertext) < nonceSize {
		return Event{}, fmt.Errorf("timelock: ciphertext too short")
	}
	nonce, sealed := ee.Ciphertext[:nonceSize], ee.Ciphertext[nonceSize:]
	payload, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Event{}, fmt.Errorf("timelock: decrypt event (tampered or wrong key): %w", err)
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("timelock: decode event: %w", err)
	}
	return ev, nil
}
