package supabase

// AuthConfig carries the parameters of a single sign-in, sign-up or link call.
// Only the fields relevant to the chosen method are read.
type AuthConfig struct {
	// OAuth
	Scopes               []string
	QueryParams          map[string]string
	AutomaticallyOpenURL bool
	RedirectTo           string

	// Email and phone
	Email    string
	Phone    string
	Password string

	// ID token
	IDToken     string
	Provider    OAuthProvider
	AccessToken string
	Nonce       string

	// Data is stored as user metadata on sign-up.
	Data map[string]any
}

// DefaultAuthConfig opens authorize URLs in the browser.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{AutomaticallyOpenURL: true}
}

func (c AuthConfig) redirectTo(fallback string) string {
	if c.RedirectTo != "" {
		return c.RedirectTo
	}
	return fallback
}
