package auth

// User is the signed-in user produced by a single adapter call.
// Empty fields mean the provider did not supply the value.
type User struct {
	ID            string `json:"id"`
	IDToken       string `json:"id_token,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
}

// WithIDToken returns a copy of u carrying the given identity token.
func (u User) WithIDToken(token string) User {
	u.IDToken = token
	return u
}

// WithAccessToken returns a copy of u carrying the given access token.
func (u User) WithAccessToken(token string) User {
	u.AccessToken = token
	return u
}
