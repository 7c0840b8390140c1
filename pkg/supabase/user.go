package supabase

import (
	"time"

	"github.com/dmitrymomot/signin/pkg/auth"
)

// User is the account returned by the auth server.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Role             string         `json:"role,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	PhoneConfirmedAt *time.Time     `json:"phone_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	Identities       []Identity     `json:"identities,omitempty"`
}

// Identity links the user to one external provider.
type Identity struct {
	ID       string `json:"identity_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Provider string `json:"provider"`
	Email    string `json:"email,omitempty"`
}

// Name returns the full_name user metadata.
func (u *User) Name() string { return u.userMeta("full_name") }

// FirstName returns the first_name user metadata.
func (u *User) FirstName() string { return u.userMeta("first_name") }

// LastName returns the last_name user metadata.
func (u *User) LastName() string { return u.userMeta("last_name") }

// AvatarURL returns the avatar_url user metadata.
func (u *User) AvatarURL() string { return u.userMeta("avatar_url") }

// Provider returns the provider the account was created with.
func (u *User) Provider() string {
	if u.AppMetadata == nil {
		return ""
	}
	s, _ := u.AppMetadata["provider"].(string)
	return s
}

func (u *User) userMeta(key string) string {
	if u.UserMetadata == nil {
		return ""
	}
	s, _ := u.UserMetadata[key].(string)
	return s
}

// AuthUser maps u to the provider-neutral user.
func (u *User) AuthUser(accessToken string) *auth.User {
	return &auth.User{
		ID:            u.ID,
		AccessToken:   accessToken,
		Name:          u.Name(),
		Email:         u.Email,
		PhoneNumber:   u.Phone,
		ProfilePicURL: u.AvatarURL(),
	}
}
