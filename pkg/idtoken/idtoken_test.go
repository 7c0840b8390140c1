package idtoken_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signin/pkg/idtoken"
)

const payload = `{"sub":"110169484474386276334","name":"Ada Lovelace","email":"ada@example.com","picture":"https://example.com/ada.png","email_verified":true,"aud":"client-id","iss":"https://accounts.google.com"}`

func token(enc *base64.Encoding, body string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	return header + "." + enc.EncodeToString([]byte(body)) + ".c2ln"
}

func TestDecode(t *testing.T) {
	t.Parallel()

	for name, enc := range map[string]*base64.Encoding{
		"without padding": base64.RawURLEncoding,
		"with padding":    base64.URLEncoding,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			raw := token(enc, payload)
			claims, err := idtoken.Decode(raw)
			require.NoError(t, err)

			assert.Equal(t, "110169484474386276334", claims.Subject)
			assert.Equal(t, "Ada Lovelace", claims.Name)
			assert.Equal(t, "ada@example.com", claims.Email)
			assert.Equal(t, "https://example.com/ada.png", claims.Picture)
			assert.True(t, bool(claims.EmailVerified))
			assert.Equal(t, "https://accounts.google.com", claims.Issuer)
			assert.Contains(t, claims.Audience, "client-id")
			assert.Equal(t, raw, claims.Raw())
		})
	}

	t.Run("payload length that needs padding", func(t *testing.T) {
		t.Parallel()
		// 4 bytes encode to 6 chars unpadded, 8 padded
		body := `{"a"` + `:1}`
		for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
			_, err := idtoken.Decode(token(enc, body))
			require.NoError(t, err)
		}
	})

	t.Run("apple string boolean", func(t *testing.T) {
		t.Parallel()
		claims, err := idtoken.Decode(token(base64.RawURLEncoding, `{"sub":"001","email_verified":"true","email":"x@privaterelay.appleid.com"}`))
		require.NoError(t, err)
		assert.True(t, bool(claims.EmailVerified))
	})

	t.Run("malformed tokens", func(t *testing.T) {
		t.Parallel()
		_, err := idtoken.Decode("")
		assert.ErrorIs(t, err, idtoken.ErrEmpty)

		_, err = idtoken.Decode("only.two")
		assert.ErrorIs(t, err, idtoken.ErrMalformed)

		_, err = idtoken.Decode(token(base64.RawURLEncoding, "not json"))
		assert.ErrorIs(t, err, idtoken.ErrMalformed)
	})
}

func TestClaims_User(t *testing.T) {
	t.Parallel()

	raw := token(base64.RawURLEncoding, `{"sub":"42","given_name":"Grace","family_name":"Hopper","email":"grace@example.com"}`)
	claims, err := idtoken.Decode(raw)
	require.NoError(t, err)

	u := claims.User()
	assert.Equal(t, "42", u.ID)
	assert.Equal(t, "Grace Hopper", u.Name)
	assert.Equal(t, "grace@example.com", u.Email)
	assert.Equal(t, raw, u.IDToken)
}
