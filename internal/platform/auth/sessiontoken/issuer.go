package sessiontoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pactsquad/pact-api/internal/domain"
)

const defaultTokenTTL = time.Hour

var errMissingSigningSecret = errors.New("sessiontoken: signing secret must be provided")

type IssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         Clock
}

// Issuer mints HS256 session tokens. Used by the dev identity provider and cmd/devsession.
type Issuer struct {
	cfg IssuerConfig
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	cfg.SigningSecret = append([]byte(nil), cfg.SigningSecret...)
	return &Issuer{cfg: cfg}
}

// Issue returns a signed token for u and its lifetime in seconds.
func (i *Issuer) Issue(u domain.User) (string, int64, error) {
	if len(i.cfg.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if u.ID == "" {
		return "", 0, ErrMissingSubject
	}

	now := i.cfg.Clock.Now().UTC()
	expiresAt := now.Add(i.cfg.TokenTTL)
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.SigningSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(i.cfg.TokenTTL / time.Second), nil
}
