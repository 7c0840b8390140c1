package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by adapters. Match them with errors.Is.
var (
	ErrConfiguration            = errors.New("invalid configuration")
	ErrUserCancelled            = errors.New("sign in cancelled by user")
	ErrVendorSDK                = errors.New("vendor sdk failure")
	ErrNetwork                  = errors.New("network failure")
	ErrUnexpectedCredentialType = errors.New("unexpected credential type")
)

// Flow errors
var (
	ErrSignInInProgress = errors.New("sign in already in progress")
	ErrNoIdentityToken  = errors.New("no identity token received")
	ErrNoUser           = errors.New("no user returned by provider")
)

// Error describes a failed adapter operation.
type Error struct {
	Provider string // adapter name, e.g. "google/desktop"
	Op       string
	Kind     error
	Err      error
}

// NewError builds an *Error. A nil kind defaults to ErrVendorSDK.
func NewError(provider, op string, kind, err error) *Error {
	if kind == nil {
		kind = ErrVendorSDK
	}
	return &Error{Provider: provider, Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Op != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Op)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NativeError is the platform-neutral form of an error raised by a native SDK.
// Host bridges convert NSError and exception values into it.
type NativeError struct {
	Domain  string
	Code    int
	Message string
}

func (e *NativeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error %d", e.Domain, e.Code)
	}
	return fmt.Sprintf("%s (%s %d)", e.Message, e.Domain, e.Code)
}

// Matches reports whether the error has the given domain and code.
func (e *NativeError) Matches(domain string, code int) bool {
	return e != nil && e.Domain == domain && e.Code == code
}
