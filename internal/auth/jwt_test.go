package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pemKey)
}

func sign(t *testing.T, priv *rsa.PrivateKey, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.New()
	if sub != "" {
		require.NoError(t, tok.Set(jwt.SubjectKey, sub))
	}
	require.NoError(t, tok.Set(jwt.IssuedAtKey, exp.Add(-time.Hour)))
	require.NoError(t, tok.Set(jwt.ExpirationKey, exp))

	key, err := jwk.FromRaw(priv)
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifier_Subject(t *testing.T) {
	priv, pub := generateKey(t)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	v, err := NewVerifier(pub, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	sub, err := v.Subject(sign(t, priv, "user-42", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	_, err = v.Subject(sign(t, priv, "user-42", now.Add(-time.Hour)))
	assert.Error(t, err, "expired token")

	_, err = v.Subject(sign(t, priv, "", now.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrNoSubject)

	other, _ := generateKey(t)
	_, err = v.Subject(sign(t, other, "user-42", now.Add(time.Hour)))
	assert.Error(t, err, "signed by another key")

	_, err = v.Subject("not.a.jwt")
	assert.Error(t, err)
}

func TestVerifier_CurrentUser(t *testing.T) {
	priv, pub := generateKey(t)
	v, err := NewVerifier(pub)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "http://example/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, priv, "user-7", time.Now().Add(time.Hour)))
	id, ok := v.CurrentUser(r)
	assert.True(t, ok)
	assert.Equal(t, "user-7", id)

	r.Header.Set("Authorization", "Bearer garbage")
	_, ok = v.CurrentUser(r)
	assert.False(t, ok)

	r.Header.Del("Authorization")
	_, ok = v.CurrentUser(r)
	assert.False(t, ok)
}

func TestNewVerifier_RejectsBadKey(t *testing.T) {
	_, err := NewVerifier("not a pem")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := BearerToken(r)
		if tt.ok {
			require.NoError(t, err, tt.header)
			assert.Equal(t, tt.want, got)
		} else {
			assert.ErrorIs(t, err, ErrMissingToken, tt.header)
		}
	}
}
