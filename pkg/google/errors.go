package google

import "errors"

// Bridge sentinels. Android hosts map NoCredentialException and
// GetCredentialCancellationException onto them.
var (
	ErrNoCredential        = errors.New("no credential available")
	ErrCredentialCancelled = errors.New("credential request cancelled")
)

var (
	ErrMissingCode      = errors.New("missing code parameter")
	ErrStateMismatch    = errors.New("oauth state mismatch")
	ErrCallbackTimeout  = errors.New("timed out waiting for the oauth callback")
	ErrEmptyAccessToken = errors.New("access token is empty")
	ErrUserInfo         = errors.New("failed to get user info")
	ErrScriptLoad       = errors.New("failed to load google identity services")
	ErrNoPresenter      = errors.New("root view controller is nil")
	ErrPromptDismissed  = errors.New("one tap prompt dismissed")
)
