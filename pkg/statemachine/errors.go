package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: event is nil")
	ErrNilInitialState   = errors.New("statemachine: initial state is nil")
)

// ErrNoTransitionAvailable reports an event with no transition from the current state.
type ErrNoTransitionAvailable struct {
	State string
	Event string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("statemachine: no transition from %q on %q", e.State, e.Event)
}

// ErrTransitionRejected reports that guards blocked every candidate transition.
type ErrTransitionRejected struct {
	State string
	Event string
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("statemachine: transition from %q on %q rejected by guards", e.State, e.Event)
}

// IsNoTransitionAvailableError reports whether err is or wraps *ErrNoTransitionAvailable.
func IsNoTransitionAvailableError(err error) bool {
	var e *ErrNoTransitionAvailable
	return errors.As(err, &e)
}

// IsTransitionRejectedError reports whether err is or wraps *ErrTransitionRejected.
func IsTransitionRejectedError(err error) bool {
	var e *ErrTransitionRejected
	return errors.As(err, &e)
}
