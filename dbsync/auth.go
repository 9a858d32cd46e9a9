package dbsync

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenHeader carries the sync credential on both directions of the
// contract.
const TokenHeader = "X-Sync-Token"

// signedTokenTTL bounds replay of a captured signed token. Cycles finish
// well inside it.
const signedTokenTTL = 2 * time.Minute

// Authenticator guards the sync endpoints on the serving side and stamps
// outgoing requests on the calling side. Both nodes construct it from the
// same Config, so a strategy or secret mismatch surfaces as 401s rather
// than bad merges.
type Authenticator interface {
	Apply(req *http.Request)
	Authenticate(req *http.Request) bool
}

// NewAuthenticator picks the strategy for the configured auth mode.
func NewAuthenticator(cfg Config) Authenticator {
	if cfg.AuthMode == AuthModeSigned {
		return &SignedTokenAuthenticator{Secret: []byte(cfg.Token), Issuer: cfg.Role}
	}
	return &StaticTokenAuthenticator{Token: cfg.Token}
}

// StaticTokenAuthenticator compares a shared secret. An empty configured
// secret rejects every request; it never degrades into accept-all.
type StaticTokenAuthenticator struct {
	Token string
}

func (a *StaticTokenAuthenticator) Apply(req *http.Request) {
	req.Header.Set(TokenHeader, a.Token)
}

func (a *StaticTokenAuthenticator) Authenticate(req *http.Request) bool {
	if a.Token == "" {
		return false
	}
	return req.Header.Get(TokenHeader) == a.Token
}

// SignedTokenAuthenticator puts a short-lived HS256 token in the same
// header, for deployments where the shared secret must not travel with
// every request.
type SignedTokenAuthenticator struct {
	Secret []byte
	Issuer string
}

func (a *SignedTokenAuthenticator) Apply(req *http.Request) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(signedTokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		// Leaves the header unset; the peer answers 401 and the cycle
		// fails visibly instead of half-authenticated.
		return
	}
	req.Header.Set(TokenHeader, signed)
}

func (a *SignedTokenAuthenticator) Authenticate(req *http.Request) bool {
	if len(a.Secret) == 0 {
		return false
	}
	raw := req.Header.Get(TokenHeader)
	if raw == "" {
		return false
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	return err == nil && token.Valid
}
