package identity

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/platform/auth/sessiontoken"
	"github.com/pactsquad/pact-api/internal/ports/out/identity"
)

// MagicLink is a sign-in link the provider would have emailed.
type MagicLink struct {
	Email string
	URL   string
}

type pendingCode struct {
	user      domain.User
	challenge string
}

// Provider is an in-memory identity.Provider for local development and tests.
//
// OAuth consent is skipped: the authorize URL is the callback itself with a code attached.
// Magic links are logged and kept in an outbox instead of being emailed. Codes are single use and
// exchanged codes mint HS256 session tokens.
// It is safe for concurrent use.
type Provider struct {
	issuer    *sessiontoken.Issuer
	logger    *zap.Logger
	providers map[string]struct{}

	mu      sync.Mutex
	codes   map[string]pendingCode
	users   map[string]domain.UserID
	outbox  []MagicLink
	failure error
}

func NewProvider(issuer *sessiontoken.Issuer, logger *zap.Logger, providers ...string) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(providers) == 0 {
		providers = []string{"google"}
	}
	set := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		set[domain.NormalizeProvider(p)] = struct{}{}
	}
	return &Provider{
		issuer:    issuer,
		logger:    logger,
		providers: set,
		codes:     map[string]pendingCode{},
		users:     map[string]domain.UserID{},
	}
}

func (p *Provider) Providers() []string {
	out := make([]string, 0, len(p.providers))
	for name := range p.providers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// FailNext makes the next provider call return err.
func (p *Provider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = err
}

func (p *Provider) takeFailure() error {
	err := p.failure
	p.failure = nil
	return err
}

func (p *Provider) AuthorizeURL(ctx context.Context, provider, callbackURL string, pkce identity.PKCE) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return "", err
	}
	provider = domain.NormalizeProvider(provider)
	if _, ok := p.providers[provider]; !ok {
		return "", fmt.Errorf("%w: oauth provider %q is not enabled", identity.ErrRejected, provider)
	}
	return p.issueCodeLocked(provider+"-user@pact.dev", callbackURL, pkce)
}

func (p *Provider) SendMagicLink(ctx context.Context, email, callbackURL string, pkce identity.PKCE) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", identity.ErrRejected)
	}
	link, err := p.issueCodeLocked(email, callbackURL, pkce)
	if err != nil {
		return err
	}
	p.outbox = append(p.outbox, MagicLink{Email: email, URL: link})
	p.logger.Info("magic link issued", zap.String("email", email), zap.String("url", link))
	return nil
}

func (p *Provider) issueCodeLocked(email, callbackURL string, pkce identity.PKCE) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad callback url: %v", identity.ErrRejected, err)
	}
	id, ok := p.users[email]
	if !ok {
		id = domain.UserID(uuid.NewString())
		p.users[email] = id
	}
	code := uuid.NewString()
	p.codes[code] = pendingCode{user: domain.User{ID: id, Email: email}, challenge: pkce.Challenge}

	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code, verifier string) (identity.Tokens, error) {
	if err := ctx.Err(); err != nil {
		return identity.Tokens{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return identity.Tokens{}, err
	}
	pc, ok := p.codes[code]
	if !ok {
		return identity.Tokens{}, fmt.Errorf("%w: unknown or used code", identity.ErrRejected)
	}
	if pc.challenge != "" && oauth2.S256ChallengeFromVerifier(verifier) != pc.challenge {
		return identity.Tokens{}, fmt.Errorf("%w: code verifier mismatch", identity.ErrRejected)
	}
	delete(p.codes, code)

	token, expiresIn, err := p.issuer.Issue(pc.user)
	if err != nil {
		return identity.Tokens{}, fmt.Errorf("%w: mint token: %w", identity.ErrUnavailable, err)
	}
	return identity.Tokens{
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		ExpiresIn:    expiresIn,
		User:         pc.user,
	}, nil
}

func (p *Provider) SignOut(ctx context.Context, _ string) error {
	p.logger.Debug("dev sign out")
	return ctx.Err()
}

// Outbox returns the magic links sent so far, oldest first.
func (p *Provider) Outbox() []MagicLink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MagicLink(nil), p.outbox...)
}

// LastLink returns the most recent magic link sent to email.
func (p *Provider) LastLink(email string) (MagicLink, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.outbox) - 1; i >= 0; i-- {
		if p.outbox[i].Email == email {
			return p.outbox[i], true
		}
	}
	return MagicLink{}, false
}
