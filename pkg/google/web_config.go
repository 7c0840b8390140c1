package google

// Google Identity Services library.
const GSIClientURL = "https://accounts.google.com/gsi/client"

// WebScopes are requested by the access-token flow.
var WebScopes = []string{"openid", "email", "profile"}

// UXMode selects how the sign-in UI is shown.
type UXMode string

const (
	UXModePopup    UXMode = "popup"
	UXModeRedirect UXMode = "redirect"
)

// Prompt controls the consent screen of the token client.
type Prompt string

const (
	PromptDefault       Prompt = ""
	PromptNone          Prompt = "none"
	PromptConsent       Prompt = "consent"
	PromptSelectAccount Prompt = "select_account"
)

// CredentialResponse is passed to the IDConfiguration callback.
type CredentialResponse struct {
	Credential string
	SelectBy   string
}

// TokenResponse is passed to the TokenClientConfig callback.
type TokenResponse struct {
	AccessToken      string
	ExpiresIn        int
	Scope            string
	Error            string
	ErrorDescription string
}

// PromptMoment is the notification passed to the one-tap prompt listener.
type PromptMoment struct {
	NotDisplayed    bool
	Skipped         bool
	Dismissed       bool
	DismissedReason string
}

// DismissedCredentialReturned is the dismissal reason reported after the prompt
// handed a credential to the callback.
const DismissedCredentialReturned = "credential_returned"

// IDConfiguration configures google.accounts.id.initialize.
// Callback is attached by the binding and is not part of Wire.
type IDConfiguration struct {
	ClientID          string
	UXMode            UXMode
	UseFedCMForPrompt bool
	AutoSelect        bool
	Nonce             string
	Callback          func(CredentialResponse)
}

// Wire returns the JavaScript object literal for the configuration.
func (c IDConfiguration) Wire() map[string]any {
	m := map[string]any{
		"client_id":            c.ClientID,
		"use_fedcm_for_prompt": c.UseFedCMForPrompt,
	}
	if c.UXMode != "" {
		m["ux_mode"] = string(c.UXMode)
	}
	if c.AutoSelect {
		m["auto_select"] = true
	}
	if c.Nonce != "" {
		m["nonce"] = c.Nonce
	}
	return m
}

// ButtonConfiguration configures google.accounts.id.renderButton.
type ButtonConfiguration struct {
	Type  string
	Theme string
	Size  string
}

func (c ButtonConfiguration) Wire() map[string]any {
	m := map[string]any{}
	if c.Type != "" {
		m["type"] = c.Type
	}
	if c.Theme != "" {
		m["theme"] = c.Theme
	}
	if c.Size != "" {
		m["size"] = c.Size
	}
	return m
}

// TokenClientConfig configures google.accounts.oauth2.initTokenClient.
// Callback is attached by the binding and is not part of Wire.
type TokenClientConfig struct {
	ClientID string
	Scope    string
	Callback func(TokenResponse)
}

func (c TokenClientConfig) Wire() map[string]any {
	return map[string]any{
		"client_id": c.ClientID,
		"scope":     c.Scope,
	}
}

// OverridableTokenClientConfig is passed to TokenClient.RequestAccessToken.
type OverridableTokenClientConfig struct {
	Scope                string
	IncludeGrantedScopes bool
	Prompt               Prompt
}

func (c OverridableTokenClientConfig) Wire() map[string]any {
	return map[string]any{
		"scope":                  c.Scope,
		"include_granted_scopes": c.IncludeGrantedScopes,
		"prompt":                 string(c.Prompt),
	}
}
