package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/signin/pkg/async"
	"github.com/dmitrymomot/signin/pkg/logger"
	"github.com/dmitrymomot/signin/pkg/statemachine"
)

// State is a named machine state.
type State string

func (s State) Name() string { return string(s) }

// Event is a named trigger moving the machine between states.
type Event string

func (e Event) Name() string { return string(e) }

// Transition moves the machine from From to To when Event fires.
type Transition struct {
	From  State
	Event Event
	To    State
}

// Observer is notified after every finished attempt.
type Observer interface {
	AttemptFinished(machine string, elapsed time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(machine string, elapsed time.Duration, err error)

func (f ObserverFunc) AttemptFinished(machine string, elapsed time.Duration, err error) {
	f(machine, elapsed, err)
}

// Option configures a Machine.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observers []Observer
}

// WithLogger sets the logger transitions are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver adds an attempt observer. Nil observers are ignored.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// Machine holds at most one pending attempt producing a T on top of a
// statemachine.StateMachine that owns the transition table.
type Machine[T any] struct {
	name      string
	sm        statemachine.StateMachine
	logger    *slog.Logger
	observers []Observer

	mu      sync.Mutex
	pending *Attempt[T]
}

// New creates a machine in its initial state. It panics on a transition with an empty
// state or event.
func New[T any](name string, initial State, transitions []Transition, opts ...Option) *Machine[T] {
	o := &options{logger: logger.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	m := &Machine[T]{
		name:      name,
		logger:    o.logger,
		observers: o.observers,
	}
	smOpts := make([]statemachine.Option, 0, len(transitions))
	for _, tr := range transitions {
		if tr.From == "" || tr.Event == "" || tr.To == "" {
			panic("flow: " + name + ": transition needs from, event and to")
		}
		smOpts = append(smOpts, statemachine.WithTransition(tr.From, tr.To, tr.Event,
			statemachine.WithAction(m.logTransition)))
	}
	m.sm = statemachine.MustNew(initial, smOpts...)
	return m
}

// Name returns the machine name.
func (m *Machine[T]) Name() string {
	return m.name
}

// Current returns the current state.
func (m *Machine[T]) Current() State {
	s, _ := m.sm.Current().(State)
	return s
}

// Pending reports whether an attempt is in flight.
func (m *Machine[T]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// CanFire reports whether ev has a transition from the current state.
func (m *Machine[T]) CanFire(ev Event) bool {
	return m.sm.CanFire(context.Background(), ev, nil)
}

// Fire moves the machine outside of any attempt. It is meant for lifecycle
// machines, such as a script loader, that never hold attempts.
func (m *Machine[T]) Fire(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(context.Background(), ev)
}

// Begin starts a new attempt. It returns ErrInProgress while another attempt is pending.
// The attempt context is derived from ctx and is cancelled when the attempt finishes.
func (m *Machine[T]) Begin(ctx context.Context) (*Attempt[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		return nil, ErrInProgress
	}

	id := uuid.NewString()
	actx, cancel := context.WithCancel(logger.WithAttemptID(ctx, id))
	a := &Attempt[T]{
		id:      id,
		machine: m,
		promise: async.NewPromise[T](),
		ctx:     actx,
		cancel:  cancel,
		started: time.Now(),
	}
	m.pending = a
	m.logger.DebugContext(actx, "attempt started", logger.Component(m.name), logger.State(string(m.Current())))
	return a, nil
}

func (m *Machine[T]) fire(a *Attempt[T], ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != a {
		return ErrStaleAttempt
	}
	return m.transitionLocked(a.ctx, ev)
}

// transitionLocked must be called with m.mu held, which serializes Fire against
// the Reset in finish.
func (m *Machine[T]) transitionLocked(ctx context.Context, ev Event) error {
	from := m.Current()
	if err := m.sm.Fire(ctx, ev, nil); err != nil {
		if statemachine.IsNoTransitionAvailableError(err) {
			return &TransitionError{Machine: m.name, From: from, Event: ev}
		}
		return err
	}
	return nil
}

func (m *Machine[T]) logTransition(ctx context.Context, from, to statemachine.State, ev statemachine.Event, _ any) error {
	m.logger.DebugContext(ctx, "state changed",
		logger.Component(m.name),
		logger.Event(ev.Name()),
		logger.Transition(from.Name(), to.Name()),
	)
	return nil
}

func (m *Machine[T]) finish(a *Attempt[T], err error) {
	m.mu.Lock()
	if m.pending == a {
		m.pending = nil
		m.sm.Reset()
	}
	m.mu.Unlock()

	elapsed := time.Since(a.started)
	if err != nil {
		m.logger.DebugContext(a.ctx, "attempt failed", logger.Component(m.name), logger.Duration(elapsed), logger.Error(err))
	} else {
		m.logger.DebugContext(a.ctx, "attempt succeeded", logger.Component(m.name), logger.Duration(elapsed))
	}
	for _, obs := range m.observers {
		obs.AttemptFinished(m.name, elapsed, err)
	}
}
