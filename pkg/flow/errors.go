package flow

import (
	"errors"
	"fmt"
)

var (
	ErrInProgress        = errors.New("flow: attempt already in progress")
	ErrInvalidTransition = errors.New("flow: invalid transition")
	ErrStaleAttempt      = errors.New("flow: attempt is no longer pending")
)

// TransitionError reports an event that has no transition from the current state.
type TransitionError struct {
	Machine string
	From    State
	Event   Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("flow: %s: no transition from %q on %q", e.Machine, e.From, e.Event)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
