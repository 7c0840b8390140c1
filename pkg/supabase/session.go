package supabase

import (
	"time"

	"github.com/dmitrymomot/signin/pkg/auth"
)

// SessionKey is the credstore key the current session is persisted under.
const SessionKey = "supabase.session"

// codeVerifierKey holds the PKCE verifier between the redirect and the code exchange.
const codeVerifierKey = "supabase.code_verifier"

// Session is an authenticated GoTrue session.
type Session struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type,omitempty"`
	ExpiresIn            int64  `json:"expires_in,omitempty"`
	ExpiresAt            int64  `json:"expires_at,omitempty"`
	RefreshToken         string `json:"refresh_token,omitempty"`
	ProviderToken        string `json:"provider_token,omitempty"`
	ProviderRefreshToken string `json:"provider_refresh_token,omitempty"`
	User                 *User  `json:"user,omitempty"`
}

// normalize fills ExpiresAt from ExpiresIn when the server sent only the latter.
func (s *Session) normalize(now time.Time) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
}

// Expiry returns when the access token expires. The zero time means unknown.
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	exp := s.Expiry()
	return !exp.IsZero() && !now.Before(exp)
}

// AuthUser maps the session user to the provider-neutral user.
func (s *Session) AuthUser() *auth.User {
	if s.User == nil {
		return nil
	}
	return s.User.AuthUser(s.AccessToken)
}

// StatusKind is the kind of a SessionStatus.
type StatusKind string

const (
	StatusInitializing     StatusKind = "initializing"
	StatusAuthenticated    StatusKind = "authenticated"
	StatusNotAuthenticated StatusKind = "not_authenticated"
	StatusRefreshFailure   StatusKind = "refresh_failure"
)

// Cause tells what produced an authenticated status.
type Cause string

const (
	CauseSignIn  Cause = "sign_in"
	CauseRefresh Cause = "refresh"
	CauseRestore Cause = "restore"
)

// SessionStatus is published by the Client whenever the session changes.
// Session and Cause are set only for StatusAuthenticated, Err only for StatusRefreshFailure.
type SessionStatus struct {
	Kind    StatusKind
	Session *Session
	Cause   Cause
	Err     error
}

func initializing() SessionStatus { return SessionStatus{Kind: StatusInitializing} }

func authenticated(s *Session, cause Cause) SessionStatus {
	return SessionStatus{Kind: StatusAuthenticated, Session: s, Cause: cause}
}

func notAuthenticated() SessionStatus { return SessionStatus{Kind: StatusNotAuthenticated} }

func refreshFailure(err error) SessionStatus {
	return SessionStatus{Kind: StatusRefreshFailure, Err: err}
}
