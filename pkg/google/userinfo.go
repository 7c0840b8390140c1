package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// UserInfoURL is the Google userinfo endpoint.
const UserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// UserInfo is the userinfo response.
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func fetchUserInfo(ctx context.Context, client *http.Client, endpoint, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, ErrEmptyAccessToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: google api returned status %d", ErrUserInfo, resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: response has no user id", ErrUserInfo)
	}
	return &info, nil
}
