// Package sessiontoken verifies and mints the access tokens that back a signed-in session.
//
// Tokens are JWTs issued by the identity provider (Supabase) or, in dev mode, by Issuer.
// HS256 tokens are checked against a shared secret; RS256 tokens against keys from a JWKS endpoint.
package sessiontoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pactsquad/pact-api/internal/domain"
)

var (
	ErrNoVerificationKey = errors.New("sessiontoken: hmac secret or jwks url required")
	ErrMissingIssuer     = errors.New("sessiontoken: issuer required")
	ErrMissingToken      = errors.New("sessiontoken: token required")
	ErrInvalidToken      = errors.New("sessiontoken: invalid token")
	ErrExpiredToken      = errors.New("sessiontoken: token expired")
	ErrMissingSubject    = errors.New("sessiontoken: subject required")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Claims is the payload of a session token. Supabase puts the user's email at the top level.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	Issuer   string
	Audience string

	HMACSecret []byte

	JWKSURL                string
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration

	ClockSkew   time.Duration
	HTTPTimeout time.Duration
}

type Verifier struct {
	cfg     Config
	clock   Clock
	keys    *keySet
	methods []string
}

func NewVerifier(cfg Config) (*Verifier, error) {
	return NewVerifierWithOptions(cfg, nil, nil)
}

func NewVerifierWithOptions(cfg Config, httpClient *http.Client, clock Clock) (*Verifier, error) {
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		return nil, ErrMissingIssuer
	}
	if len(cfg.HMACSecret) == 0 && strings.TrimSpace(cfg.JWKSURL) == "" {
		return nil, ErrNoVerificationKey
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if clock == nil {
		clock = realClock{}
	}
	cfg.HMACSecret = append([]byte(nil), cfg.HMACSecret...)

	v := &Verifier{cfg: cfg, clock: clock}
	if len(cfg.HMACSecret) > 0 {
		v.methods = append(v.methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.JWKSURL != "" {
		v.keys = newKeySet(cfg, httpClient, clock)
		v.methods = append(v.methods, jwt.SigningMethodRS256.Alg())
	}
	return v, nil
}

// Verify checks signature, iss, aud (when configured), exp and nbf and returns the session the
// token represents.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (domain.Session, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return domain.Session{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			return v.cfg.HMACSecret, nil
		case jwt.SigningMethodRS256.Alg():
			kid, _ := t.Header["kid"].(string)
			return v.keys.key(ctx, kid)
		default:
			return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
		}
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Session{}, ErrExpiredToken
		}
		return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return domain.Session{}, ErrInvalidToken
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return domain.Session{}, ErrMissingSubject
	}
	return domain.Session{UserID: domain.UserID(sub), Email: claims.Email}, nil
}
