package statemachine

import (
	"context"
	"fmt"
	"sync"
)

type key struct {
	from  string
	event string
}

// Simple is the in-memory StateMachine.
type Simple struct {
	mu      sync.RWMutex
	initial State
	current State
	table   map[key][]Transition
}

var _ StateMachine = (*Simple)(nil)

// Option configures a machine under construction.
type Option func(*Simple) error

// New returns a machine in initial with the transitions the options add.
func New(initial State, opts ...Option) (*Simple, error) {
	if initial == nil {
		return nil, ErrNilInitialState
	}
	m := &Simple{initial: initial, current: initial, table: make(map[key][]Transition)}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on a bad transition table.
func MustNew(initial State, opts ...Option) *Simple {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

func (m *Simple) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Simple) AddTransition(t Transition) error {
	if t.From == nil || t.To == nil || t.Event == nil {
		return ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{t.From.Name(), t.Event.Name()}
	m.table[k] = append(m.table[k], t)
	return nil
}

// Fire runs the first matching transition for event.
func (m *Simple) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.match(ctx, event, data)
	if err != nil {
		return err
	}
	for _, act := range t.Actions {
		if act == nil {
			continue
		}
		if err := act(ctx, m.current, t.To, event, data); err != nil {
			return fmt.Errorf("statemachine: action on %q: %w", event.Name(), err)
		}
	}
	m.current = t.To
	return nil
}

func (m *Simple) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.match(ctx, event, data)
	return err == nil
}

// Reset returns the machine to its initial state.
func (m *Simple) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

// match must be called with the lock held.
func (m *Simple) match(ctx context.Context, event Event, data any) (*Transition, error) {
	from := m.current.Name()
	candidates := m.table[key{from, event.Name()}]
	if len(candidates) == 0 {
		return nil, &ErrNoTransitionAvailable{State: from, Event: event.Name()}
	}
	for i := range candidates {
		if m.allowed(ctx, candidates[i], event, data) {
			return &candidates[i], nil
		}
	}
	return nil, &ErrTransitionRejected{State: from, Event: event.Name()}
}

func (m *Simple) allowed(ctx context.Context, t Transition, event Event, data any) bool {
	for _, g := range t.Guards {
		if g != nil && !g(ctx, m.current, event, data) {
			return false
		}
	}
	return true
}
