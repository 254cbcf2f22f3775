// Package auth starts and completes sign-in with the identity provider. Every sign-in carries a
// return ticket so the user lands back on the page that sent them to sign in.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
	"github.com/pactsquad/pact-api/internal/ports/out/identity"
)

const (
	DefaultTimeout = 5 * time.Second

	pkceMethod = "S256"
)

// OAuthStart is the result of starting an OAuth sign-in. The caller must keep Verifier (in a
// cookie) until the callback.
type OAuthStart struct {
	RedirectURL string
	Verifier    string
}

// SignIn is the provider session established by the callback.
type SignIn struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         domain.User
}

type Gateway struct {
	provider identity.Provider
	tickets  returnticket.Codec
	timeout  time.Duration

	sends singleflight.Group

	newVerifier func() string
}

func NewGateway(provider identity.Provider, tickets returnticket.Codec, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		provider:    provider,
		tickets:     tickets,
		timeout:     timeout,
		newVerifier: oauth2.GenerateVerifier,
	}
}

func (g *Gateway) pkce() (string, identity.PKCE) {
	v := g.newVerifier()
	return v, identity.PKCE{Challenge: oauth2.S256ChallengeFromVerifier(v), Method: pkceMethod}
}

// BeginOAuth returns the provider consent URL for a sign-in that returns to next.
func (g *Gateway) BeginOAuth(ctx context.Context, provider, next string) (OAuthStart, error) {
	provider = domain.NormalizeProvider(provider)
	if provider == "" {
		return OAuthStart{}, apperr.NewAuthInput("sign-in provider is required", map[string]any{"provider": "must be non-empty"})
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	verifier, pkce := g.pkce()
	u, err := g.provider.AuthorizeURL(ctx, provider, g.tickets.Encode(next), pkce)
	if err != nil {
		return OAuthStart{}, apperr.Wrap(err, classify("start sign-in"))
	}
	return OAuthStart{RedirectURL: u, Verifier: verifier}, nil
}

// BeginMagicLink asks the provider to email a sign-in link that returns to next. The returned
// attempt is Sent on success and Idle (carrying Err) on failure.
//
// Concurrent sends for the same email and destination share one provider call.
func (g *Gateway) BeginMagicLink(ctx context.Context, email, next string) (MagicLinkAttempt, error) {
	a := NewAttempt()

	normalized, ok := NormalizeEmail(email)
	if !ok {
		err := apperr.NewAuthInput("enter a valid email address", map[string]any{"email": "must be a valid email address"})
		a.Email = strings.TrimSpace(email)
		a.Err = err
		return a, err
	}
	if err := a.begin(normalized); err != nil {
		return a, err
	}

	// Collapsed callers share this send, so it must outlive the caller that started it.
	sendCtx := context.WithoutCancel(ctx)
	v, err, _ := g.sends.Do(normalized+"|"+next, func() (any, error) {
		ctx, cancel := context.WithTimeout(sendCtx, g.timeout)
		defer cancel()
		verifier, pkce := g.pkce()
		if err := g.provider.SendMagicLink(ctx, normalized, g.tickets.Encode(next), pkce); err != nil {
			return "", apperr.Wrap(err, classify("send sign-in link"))
		}
		return verifier, nil
	})
	if err != nil {
		if terr := a.fail(err); terr != nil {
			return a, terr
		}
		return a, err
	}
	if err := a.succeed(v.(string)); err != nil {
		return a, err
	}
	return a, nil
}

// CompleteSignIn redeems the callback code with the verifier saved when sign-in began.
func (g *Gateway) CompleteSignIn(ctx context.Context, code, verifier string) (SignIn, error) {
	if strings.TrimSpace(code) == "" {
		return SignIn{}, apperr.NewAuthInput("sign-in link is missing its code", map[string]any{"code": "required"})
	}
	if strings.TrimSpace(verifier) == "" {
		return SignIn{}, apperr.NewAuthInput("sign-in was started in a different browser", map[string]any{"verifier": "required"})
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	t, err := g.provider.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return SignIn{}, apperr.Wrap(err, classify("complete sign-in"))
	}
	return SignIn{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
		User:         t.User,
	}, nil
}

// SignOut revokes the provider session. Callers clear their own cookies regardless of the result.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.provider.SignOut(ctx, accessToken); err != nil {
		return apperr.Wrap(err, classify("sign out"))
	}
	return nil
}

// EntryURL is where a session-less request for next is sent to sign in.
func (g *Gateway) EntryURL(next string) string {
	return g.tickets.EntryURL(next)
}

// NormalizeEmail trims and lowercases email and reports whether it is a bare address.
func NormalizeEmail(email string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", false
	}
	return e, true
}

func classify(action string) func(error) *apperr.Error {
	return func(err error) *apperr.Error {
		if errors.Is(err, identity.ErrRejected) {
			ae := apperr.NewAuthInput("could not "+action+": the provider rejected the request", nil)
			ae.Err = err
			return ae
		}
		return apperr.NewAuthInitiation("could not "+action, err)
	}
}
