package identity

import (
	"context"
	"errors"

	"github.com/pactsquad/pact-api/internal/domain"
)

var (
	// ErrRejected indicates the provider refused the request (bad email, unknown provider,
	// invalid or expired code).
	ErrRejected = errors.New("identity provider rejected request")

	// ErrUnavailable indicates the provider could not be reached or failed server-side.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// PKCE carries the S256 code challenge bound to an authentication attempt.
type PKCE struct {
	Challenge string
	Method    string
}

// Tokens is a provider session returned after a successful callback exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
	User      domain.User
}

// Provider is the external identity provider collaborator.
//
// Both sign-in flows accept an arbitrary callback URL that the provider redirects to (with a
// `code` query parameter appended) once the user completes authentication.
type Provider interface {
	// AuthorizeURL returns the URL of the provider's OAuth consent flow.
	AuthorizeURL(ctx context.Context, provider, callbackURL string, pkce PKCE) (string, error)

	// SendMagicLink asks the provider to email a one-time sign-in link.
	SendMagicLink(ctx context.Context, email, callbackURL string, pkce PKCE) error

	// ExchangeCode redeems the callback code together with the PKCE verifier.
	ExchangeCode(ctx context.Context, code, verifier string) (Tokens, error)

	// SignOut revokes the provider session behind accessToken.
	SignOut(ctx context.Context, accessToken string) error
}
