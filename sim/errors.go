package sim

import (
	"errors"
	"fmt"
)

// ErrStateViolation is matched by every StateError via errors.Is.
var ErrStateViolation = errors.New("position state violation")

// StateError reports an intent the current position cannot accept, such as
// an add or close while flat. It means the sizer and engine disagree about
// the position and the run must stop.
type StateError struct {
	Intent Intent
	Side   Side
	Detail string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("sim: cannot %s while %s", e.Intent, e.Side)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StateError) Unwrap() error { return ErrStateViolation }
