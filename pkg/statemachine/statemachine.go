package statemachine

import "context"

// State is a machine state.
type State interface {
	Name() string
}

// Event triggers a transition.
type Event interface {
	Name() string
}

// Guard decides whether a transition may run. data is the value passed to Fire.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs before the state changes. An error aborts the transition.
// Actions run under the machine lock and must not call back into it.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Transition moves the machine from From to To on Event when every guard passes.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// StateMachine is a finite state machine safe for concurrent use.
type StateMachine interface {
	Current() State
	AddTransition(t Transition) error
	Fire(ctx context.Context, event Event, data any) error
	CanFire(ctx context.Context, event Event, data any) bool
	Reset()
}

// StringState is a State named by its value.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event named by its value.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }
