// Package auth resolve o usuário autenticado a partir de um bearer token RS256.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrNoSubject    = errors.New("token has no subject")
)

// Verifier valida tokens RS256 emitidos pelo backend da loja com a chave pública PEM.
type Verifier struct {
	key  jwk.Key
	skew time.Duration
	now  func() time.Time
}

type Option func(*Verifier)

// WithAcceptableSkew tolera diferença de relógio em exp/nbf/iat.
func WithAcceptableSkew(d time.Duration) Option {
	return func(v *Verifier) { v.skew = d }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier parseia a chave pública PEM.
func NewVerifier(publicKeyPEM string, opts ...Option) (*Verifier, error) {
	key, err := jwk.ParseKey([]byte(publicKeyPEM), jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	if key.KeyType() != jwa.RSA {
		return nil, fmt.Errorf("jwt public key must be RSA, got %s", key.KeyType())
	}

	v := &Verifier{key: key, skew: 5 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Subject valida o token e devolve o claim sub.
func (v *Verifier) Subject(token string) (string, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.RS256, v.key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if tok.Subject() == "" {
		return "", ErrNoSubject
	}
	return tok.Subject(), nil
}

// CurrentUser tem a assinatura de ratelimit.Resolver.CurrentUser.
// Token ausente ou inválido resulta em ("", false) e o middleware responde 401.
func (v *Verifier) CurrentUser(r *http.Request) (string, bool) {
	token, err := BearerToken(r)
	if err != nil {
		return "", false
	}
	sub, err := v.Subject(token)
	if err != nil {
		return "", false
	}
	return sub, true
}

// BearerToken extrai o token do header Authorization.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
