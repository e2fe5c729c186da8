package timelock

// GetAccessibleEvents returns only the plaintext events visible at
// currentTime: entries whose Encrypted flag is false AND whose timestamp
// does not exceed currentTime. It never returns a future event's content,
// regardless of how the slice was produced.
func GetAccessibleEvents(events []EncryptedEvent, currentTime int64) []Event {
	out := make([]Event, 0, len(events))
	for _, ee := range events {
		if ee.Encrypted {
			continue
		}
		if ee.Timestamp.Unix() > currentTime {
			continue
		}
		if ee.Plain != nil {
			out = append(out, *ee.Plain)
		}
	}
	return out
}

// GetAccessibleSignals returns the signals attached to event whose release
// time does not exceed currentTime. A signal may become visible before its
// parent event does, by design: the parent's existence is gated separately
// by GetAccessibleEvents / the event's own timestamp.
func GetAccessibleSignals(event Event, currentTime int64) []Signal {
	out := make([]Signal, 0, len(event.Signals))
	for _, sig := range event.Signals {
		if sig.ReleaseTime.Unix() <= currentTime {
			out = append(out, sig)
		}
	}
	return out
}

// AccessibleSignalsFromEncrypted peeks a (possibly still-encrypted) entry
// with the run key to extract only the signals whose release time has
// arrived, leaving the rest of a locked event's content hidden. Only the
// Time-Lock's own InformationContext builder — which holds the run key —
// calls this; agents never receive the key or call it themselves.
func AccessibleSignalsFromEncrypted(ee EncryptedEvent, currentTime int64, key []byte) ([]Signal, error) {
	event, err := DecryptEvent(ee, key)
	if err != nil {
		return nil, err
	}
	return GetAccessibleSignals(event, currentTime), nil
}
