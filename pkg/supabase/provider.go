package supabase

import (
	"fmt"
	"strings"
)

// OAuthProvider is an external identity provider configured in Supabase.
type OAuthProvider string

const (
	ProviderGithub       OAuthProvider = "github"
	ProviderGitlab       OAuthProvider = "gitlab"
	ProviderBitbucket    OAuthProvider = "bitbucket"
	ProviderTwitter      OAuthProvider = "twitter"
	ProviderDiscord      OAuthProvider = "discord"
	ProviderSlack        OAuthProvider = "slack"
	ProviderSpotify      OAuthProvider = "spotify"
	ProviderTwitch       OAuthProvider = "twitch"
	ProviderLinkedInOIDC OAuthProvider = "linkedin_oidc"
	ProviderKeycloak     OAuthProvider = "keycloak"
	ProviderGoogle       OAuthProvider = "google"
	ProviderFacebook     OAuthProvider = "facebook"
	ProviderAzure        OAuthProvider = "azure"
	ProviderApple        OAuthProvider = "apple"
)

var oauthProviders = []OAuthProvider{
	ProviderGithub, ProviderGitlab, ProviderBitbucket, ProviderTwitter,
	ProviderDiscord, ProviderSlack, ProviderSpotify, ProviderTwitch,
	ProviderLinkedInOIDC, ProviderKeycloak, ProviderGoogle, ProviderFacebook,
	ProviderAzure, ProviderApple,
}

// OAuthProviders returns every supported provider.
func OAuthProviders() []OAuthProvider {
	out := make([]OAuthProvider, len(oauthProviders))
	copy(out, oauthProviders)
	return out
}

// ParseOAuthProvider accepts a provider name in any case.
func ParseOAuthProvider(name string) (OAuthProvider, error) {
	p := OAuthProvider(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Valid reports whether p is a supported provider.
func (p OAuthProvider) Valid() bool {
	for _, known := range oauthProviders {
		if p == known {
			return true
		}
	}
	return false
}

// SupportsIDToken reports whether an identity token issued by p can be exchanged
// for a session through the id_token grant.
func (p OAuthProvider) SupportsIDToken() bool {
	switch p {
	case ProviderGoogle, ProviderApple, ProviderKeycloak:
		return true
	}
	return false
}

func (p OAuthProvider) String() string {
	return string(p)
}

// DefaultProvider is a built-in Supabase sign-in method.
type DefaultProvider string

const (
	DefaultEmail   DefaultProvider = "EMAIL"
	DefaultIDToken DefaultProvider = "ID_TOKEN"
	DefaultPhone   DefaultProvider = "PHONE"
)
