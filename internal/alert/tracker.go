package alert

import "time"

// State is the mutable half of a check: whether its alert is currently
// active and the timestamps of the last transitions. Each State is owned
// exclusively by its check's goroutine; outside readers get copies.
type State struct {
	Check               string    `json:"check"`
	Kind                string    `json:"kind"`
	Active              bool      `json:"active"`
	LastFiredAt         time.Time `json:"last_fired_at,omitempty"`
	LastClearedAt       time.Time `json:"last_cleared_at,omitempty"`
	ConsecutiveBreaches int       `json:"consecutive_breaches"`
	LastValue           float64   `json:"last_value"`
	LastSampleAt        time.Time `json:"last_sample_at,omitempty"`
	LastUnreadable      bool      `json:"last_unreadable,omitempty"`
}

// Tracker is the per-check state machine. Starting state is CLEAR; it
// never emits two consecutive fired events without an intervening cleared
// one (renotify excepted, at the configured cadence).
type Tracker struct {
	check Check
	state State
}

// NewTracker returns a Tracker in the CLEAR state for the given check.
func NewTracker(check Check) *Tracker {
	return &Tracker{
		check: check,
		state: State{Check: check.Name, Kind: check.Kind},
	}
}

// Check returns the immutable check definition this tracker serves.
func (t *Tracker) Check() Check {
	return t.check
}

// State returns a copy of the current alert state.
func (t *Tracker) State() State {
	return t.state
}

// Observe feeds one sample through the state machine and returns the
// event warranted by the transition, or nil when nothing changed.
// Unreadable samples leave the state untouched entirely: a failed read
// neither breaches nor clears.
func (t *Tracker) Observe(s Sample) *Event {
	if s.Unreadable {
		t.state.LastUnreadable = true
		return nil
	}
	t.state.LastUnreadable = false
	t.state.LastValue = s.Value
	t.state.LastSampleAt = s.Timestamp

	switch t.check.Policy.Classify(s.Value) {
	case VerdictBreach:
		t.state.ConsecutiveBreaches++
		if !t.state.Active {
			t.state.Active = true
			t.state.LastFiredAt = s.Timestamp
			ev := NewEvent(t.check, EventFired, s.Value, s.Timestamp)
			return &ev
		}
		if t.check.Realert > 0 && s.Timestamp.Sub(t.state.LastFiredAt) >= t.check.Realert {
			t.state.LastFiredAt = s.Timestamp
			ev := NewEvent(t.check, EventRenotify, s.Value, s.Timestamp)
			return &ev
		}
		return nil
	case VerdictClear:
		t.state.ConsecutiveBreaches = 0
		if t.state.Active {
			t.state.Active = false
			t.state.LastClearedAt = s.Timestamp
			ev := NewEvent(t.check, EventCleared, s.Value, s.Timestamp)
			return &ev
		}
		return nil
	default:
		// Inside the hysteresis band: hold whatever state we are in.
		return nil
	}
}
