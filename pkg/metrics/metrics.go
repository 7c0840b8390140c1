// Package metrics exposes Prometheus collectors for sign-in attempts.
package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/signin/pkg/auth"
	"github.com/dmitrymomot/signin/pkg/flow"
)

// Attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Metrics groups the sign-in collectors.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	SignOuts        *prometheus.CounterVec
	SessionRefresh  *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_attempts_total",
			Help: "Finished sign-in attempts by provider, platform and outcome",
		}, []string{"provider", "platform", "outcome"}),
		AttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signin_attempt_duration_seconds",
			Help:    "Time from starting a sign-in attempt to its outcome",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "platform"}),
		SignOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_sign_out_total",
			Help: "Sign-out calls by provider and platform",
		}, []string{"provider", "platform"}),
		SessionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signin_session_refresh_total",
			Help: "Supabase session refreshes by outcome",
		}, []string{"outcome"}),
	}
}

// Register registers the collectors on reg, or the default registerer if nil.
// Collectors that are already registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.Attempts, m.AttemptDuration, m.SignOuts, m.SessionRefresh} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// NewRegistry returns a fresh registry with the collectors registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := New()
	// a fresh registry cannot hold duplicates
	_ = m.Register(reg)
	return reg, m
}

// AttemptFinished records a finished attempt. It implements flow.Observer.
// Machine names of the form "provider/platform" are split into both labels.
func (m *Metrics) AttemptFinished(machine string, elapsed time.Duration, err error) {
	provider, platform := SplitName(machine)
	m.Attempts.WithLabelValues(provider, platform, Outcome(err)).Inc()
	m.AttemptDuration.WithLabelValues(provider, platform).Observe(elapsed.Seconds())
}

// SignedOut counts a sign-out of the named adapter.
func (m *Metrics) SignedOut(name string) {
	provider, platform := SplitName(name)
	m.SignOuts.WithLabelValues(provider, platform).Inc()
}

// SplitName splits "google/desktop" into ("google", "desktop").
// Names without a slash get an empty platform.
func SplitName(name string) (provider, platform string) {
	provider, platform, _ = strings.Cut(name, "/")
	return provider, platform
}

// Refreshed counts a session refresh.
func (m *Metrics) Refreshed(err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.SessionRefresh.WithLabelValues(outcome).Inc()
}

// Outcome classifies an attempt error into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, auth.ErrUserCancelled), errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, auth.ErrSignInInProgress), errors.Is(err, flow.ErrInProgress):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

var _ flow.Observer = (*Metrics)(nil)
