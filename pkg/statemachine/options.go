package statemachine

import "fmt"

// TransitionOption adds guards or actions to one transition.
type TransitionOption func(*Transition)

// WithTransition registers from -> to on event.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Simple) error {
		t := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		if err := m.AddTransition(t); err != nil {
			return fmt.Errorf("add transition on %v: %w", event, err)
		}
		return nil
	}
}

// WithTransitions registers every transition in ts.
func WithTransitions(ts ...Transition) Option {
	return func(m *Simple) error {
		for i, t := range ts {
			if err := m.AddTransition(t); err != nil {
				return fmt.Errorf("add transition %d: %w", i, err)
			}
		}
		return nil
	}
}

// WithGuard adds a guard. Nil guards are ignored.
func WithGuard(g Guard) TransitionOption {
	return func(t *Transition) {
		if g != nil {
			t.Guards = append(t.Guards, g)
		}
	}
}

// WithAction adds an action. Nil actions are ignored.
func WithAction(a Action) TransitionOption {
	return func(t *Transition) {
		if a != nil {
			t.Actions = append(t.Actions, a)
		}
	}
}
