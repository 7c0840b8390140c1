// Package idtoken decodes the claims of OpenID Connect identity tokens.
//
// Tokens are decoded without verifying their signature: the adapters in this module receive
// them directly from the identity provider's SDK and only need the profile claims. Segments
// are accepted with or without base64 padding.
package idtoken

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/signin/pkg/auth"
)

var (
	ErrMalformed = errors.New("idtoken: malformed token")
	ErrEmpty     = errors.New("idtoken: empty token")
)

// Claims are the profile claims carried by Google and Apple identity tokens.
type Claims struct {
	jwt.RegisteredClaims
	Name          string   `json:"name,omitempty"`
	GivenName     string   `json:"given_name,omitempty"`
	FamilyName    string   `json:"family_name,omitempty"`
	Email         string   `json:"email,omitempty"`
	EmailVerified FlexBool `json:"email_verified,omitempty"`
	Picture       string   `json:"picture,omitempty"`
	PhoneNumber   string   `json:"phone_number,omitempty"`
	Nonce         string   `json:"nonce,omitempty"`

	raw string
}

// FlexBool accepts both JSON booleans and the "true"/"false" strings Apple sends.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(data, `"`)) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("idtoken: invalid boolean %s", data)
	}
	return nil
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed(), jwt.WithoutClaimsValidation())

// Decode parses the payload segment of token.
func Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrEmpty
	}

	var claims Claims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	claims.raw = token
	return claims, nil
}

// Raw returns the token the claims were decoded from.
func (c Claims) Raw() string {
	return c.raw
}

// DisplayName returns the name claim, falling back to given and family names.
func (c Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// User maps the claims to an auth.User carrying the raw token as IDToken.
func (c Claims) User() auth.User {
	return auth.User{
		ID:            c.Subject,
		IDToken:       c.raw,
		Name:          c.DisplayName(),
		Email:         c.Email,
		PhoneNumber:   c.PhoneNumber,
		ProfilePicURL: c.Picture,
	}
}
