package supabase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingURL           = errors.New("supabase url is required")
	ErrMissingKey           = errors.New("supabase key is required")
	ErrUnknownProvider      = errors.New("unknown oauth provider")
	ErrIDTokenNotSupported  = errors.New("provider does not support id token sign in")
	ErrMissingCredentials   = errors.New("credentials are required")
	ErrUnsupportedMethod    = errors.New("unsupported sign in method")
	ErrNotAuthenticated     = errors.New("no active session")
	ErrDeepLinkMismatch     = errors.New("deep link does not match the configured scheme or host")
	ErrDeepLinkNoSession    = errors.New("deep link carries neither tokens nor a code")
	ErrDeepLinkRejected     = errors.New("sign in rejected by auth server")
	ErrMissingCodeVerifier  = errors.New("no pkce code verifier stored for this sign in")
	ErrInvalidSession       = errors.New("session response is missing tokens")
	ErrClientAlreadyStarted = errors.New("client already started")
)

// APIError is a non-2xx response from the auth server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase auth: status %d", e.Status)
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteByte(')')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Rejected reports whether the server refused the request itself,
// as opposed to failing to process it.
func (e *APIError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// apiErrorBody covers both GoTrue error shapes.
type apiErrorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b apiErrorBody) toError(status int) *APIError {
	e := &APIError{Status: status, Code: b.ErrorCode}
	if e.Code == "" {
		e.Code = b.Error
	}
	for _, m := range []string{b.Msg, b.Message, b.ErrorDescription} {
		if m != "" {
			e.Message = m
			break
		}
	}
	return e
}
