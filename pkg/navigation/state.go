package navigation

import (
	"fmt"
	"time"
)

// State is the navigation machine state.
type State int

const (
	Idle State = iota
	Loading
	Submitting
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Observer receives navigation lifecycle measurements.
// telemetry.Metrics implements it.
type Observer interface {
	ObserveTransition(kind, outcome string, d time.Duration)
	ObserveDeferred(outcome string)
}

// Transition outcomes reported to the Observer.
const (
	OutcomeCommitted  = "committed"
	OutcomeFailed     = "failed"
	OutcomeValidation = "validation"
	OutcomeRedirected = "redirected"
	OutcomeSuperseded = "superseded"
)

type nopObserver struct{}

func (nopObserver) ObserveTransition(string, string, time.Duration) {}
func (nopObserver) ObserveDeferred(string)                          {}
