package timelock

import "strconv"

// InformationContext is the filtered view of the world handed to decision
// agents at a given wall-time. It is built once per tick by the engine
// (the only holder of the run key) and is the only world-state an agent
// ever observes directly: it must never contain an event or signal with a
// timestamp strictly later than CurrentTime.
type InformationContext struct {
	CurrentTime            int64               `json:"current_time"`
	CurrentTick            uint64              `json:"current_tick"`
	ObservableEvents       []Event             `json:"observable_events"`
	ObservableSignalsByKey map[string][]Signal `json:"observable_signals_by_event"`
	ActiveEventTypes       []string            `json:"active_event_types"`
	RecentEventTypes       []string            `json:"recent_event_types"`
}

// BuildInformationContext assembles an InformationContext from the
// engine's authoritative (possibly still-locked) event list. key is the
// run's Time-Lock key, needed only to peek early-released signals on
// events that have not themselves unlocked yet; the returned context
// carries no key material and no event whose timestamp exceeds
// currentTime.
func BuildInformationContext(events []EncryptedEvent, currentTime int64, currentTick uint64, key []byte, active, recent []string) (InformationContext, error) {
	ctx := InformationContext{
		CurrentTime:            currentTime,
		CurrentTick:            currentTick,
		ObservableEvents:       GetAccessibleEvents(events, currentTime),
		ObservableSignalsByKey: map[string][]Signal{},
		ActiveEventTypes:       append([]string(nil), active...),
		RecentEventTypes:       append([]string(nil), recent...),
	}
	for _, ee := range events {
		signals, err := AccessibleSignalsFromEncrypted(ee, currentTime, key)
		if err != nil {
			return InformationContext{}, err
		}
		if len(signals) == 0 {
			continue
		}
		ctx.ObservableSignalsByKey[eventKey(ee.Timestamp.Unix(), ee)] = signals
	}
	return ctx, nil
}

func eventKey(ts int64, ee EncryptedEvent) string {
	if ee.Plain != nil {
		return ee.Plain.EventType
	}
	// Still locked: identify by timestamp only, since the type itself is
	// part of the hidden payload.
	return "locked@" + strconv.FormatInt(ts, 10)
}
