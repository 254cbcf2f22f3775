package auth_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	memidentity "github.com/pactsquad/pact-api/internal/adapters/memory/identity"
	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/app/auth"
	"github.com/pactsquad/pact-api/internal/platform/auth/sessiontoken"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
	"github.com/pactsquad/pact-api/internal/ports/out/identity"
)

func newGateway(t *testing.T) (*auth.Gateway, *memidentity.Provider) {
	t.Helper()
	issuer := sessiontoken.NewIssuer(sessiontoken.IssuerConfig{SigningSecret: []byte("s"), Issuer: "pact-dev"})
	p := memidentity.NewProvider(issuer, nil)
	return auth.NewGateway(p, returnticket.NewCodec("https://pact.example"), 0), p
}

func TestGateway_MagicLinkCarriesReturnTicketThroughSignIn(t *testing.T) {
	t.Parallel()

	g, p := newGateway(t)
	a, err := g.BeginMagicLink(context.Background(), "  Traveler@Example.com ", "/trips/T1")
	if err != nil {
		t.Fatalf("BeginMagicLink() err=%v", err)
	}
	if a.State != auth.AttemptSent || a.Email != "traveler@example.com" || a.Verifier == "" {
		t.Fatalf("attempt=%+v", a)
	}

	link, ok := p.LastLink("traveler@example.com")
	if !ok {
		t.Fatalf("no magic link sent")
	}
	u, err := url.Parse(link.URL)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Path != "/auth/callback" {
		t.Fatalf("callback path=%q", u.Path)
	}
	if got := returnticket.NewCodec("https://pact.example").Decode(u.Query()); got != "/trips/T1" {
		t.Fatalf("decoded next=%q, want /trips/T1", got)
	}

	s, err := g.CompleteSignIn(context.Background(), u.Query().Get("code"), a.Verifier)
	if err != nil {
		t.Fatalf("CompleteSignIn() err=%v", err)
	}
	if s.AccessToken == "" || s.User.Email != "traveler@example.com" {
		t.Fatalf("sign in=%+v", s)
	}
}

func TestGateway_MagicLinkRejectsMalformedEmail(t *testing.T) {
	t.Parallel()

	g, p := newGateway(t)
	for _, email := range []string{"", "not-an-email", "Bob <bob@example.com>", "a@b@c"} {
		a, err := g.BeginMagicLink(context.Background(), email, "/trips")
		if !errors.Is(err, apperr.AuthInitiation) {
			t.Fatalf("email=%q err=%v, want AuthInitiationError", email, err)
		}
		if a.State != auth.AttemptIdle || a.Err == nil {
			t.Fatalf("email=%q attempt=%+v, want idle with error", email, a)
		}
	}
	if n := len(p.Outbox()); n != 0 {
		t.Fatalf("outbox=%d, want 0", n)
	}
}

func TestGateway_ProviderFailureReturnsIdleAttempt(t *testing.T) {
	t.Parallel()

	g, p := newGateway(t)
	p.FailNext(identity.ErrUnavailable)

	a, err := g.BeginMagicLink(context.Background(), "a@example.com", "/trips")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.AuthInitiation || ae.Status != 502 {
		t.Fatalf("err=%v, want 502 AuthInitiationError", err)
	}
	if a.State != auth.AttemptIdle || !errors.Is(a.Err, apperr.AuthInitiation) || a.Email != "a@example.com" {
		t.Fatalf("attempt=%+v", a)
	}

	a.Reset()
	if a.State != auth.AttemptIdle || a.Email != "" || a.Err != nil {
		t.Fatalf("reset attempt=%+v", a)
	}
}

func TestGateway_TimeoutIsNetworkError(t *testing.T) {
	t.Parallel()

	g, p := newGateway(t)
	p.FailNext(context.DeadlineExceeded)
	if _, err := g.BeginMagicLink(context.Background(), "a@example.com", "/trips"); !errors.Is(err, apperr.Network) {
		t.Fatalf("err=%v, want NetworkError", err)
	}
}

type countingProvider struct {
	identity.Provider
	calls   atomic.Int64
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (c *countingProvider) SendMagicLink(ctx context.Context, email, cb string, pkce identity.PKCE) error {
	c.calls.Add(1)
	c.once.Do(func() { close(c.started) })
	<-c.release
	return nil
}

func TestGateway_DuplicateSendsCollapse(t *testing.T) {
	t.Parallel()

	cp := &countingProvider{started: make(chan struct{}), release: make(chan struct{})}
	g := auth.NewGateway(cp, returnticket.NewCodec("https://pact.example"), 0)

	const n = 5
	var wg sync.WaitGroup
	verifiers := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := g.BeginMagicLink(context.Background(), "a@example.com", "/trips")
			if err != nil {
				t.Errorf("BeginMagicLink() err=%v", err)
				return
			}
			verifiers[i] = a.Verifier
		}(i)
	}
	<-cp.started
	close(cp.release)
	wg.Wait()

	if got := cp.calls.Load(); got < 1 || got > n {
		t.Fatalf("calls=%d", got)
	}
	for _, v := range verifiers {
		if v == "" {
			t.Fatalf("verifiers=%v, want all set", verifiers)
		}
	}
}

func TestGateway_BeginOAuth(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t)
	start, err := g.BeginOAuth(context.Background(), "Google", "/trips/T1?tab=activity")
	if err != nil {
		t.Fatalf("BeginOAuth() err=%v", err)
	}
	if start.Verifier == "" {
		t.Fatalf("verifier not set")
	}
	u, _ := url.Parse(start.RedirectURL)
	if got := u.Query().Get("next"); got != "/trips/T1?tab=activity" {
		t.Fatalf("next=%q", got)
	}

	if _, err := g.BeginOAuth(context.Background(), "", "/trips"); !errors.Is(err, apperr.AuthInitiation) {
		t.Fatalf("empty provider err=%v", err)
	}
	_, err = g.BeginOAuth(context.Background(), "myspace", "/trips")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.AuthInitiation || ae.Status != 400 {
		t.Fatalf("unknown provider err=%v, want 400 AuthInitiationError", err)
	}
}

func TestGateway_CompleteSignInRequiresCodeAndVerifier(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t)
	if _, err := g.CompleteSignIn(context.Background(), "", "v"); !errors.Is(err, apperr.AuthInitiation) {
		t.Fatalf("missing code err=%v", err)
	}
	if _, err := g.CompleteSignIn(context.Background(), "c", ""); !errors.Is(err, apperr.AuthInitiation) {
		t.Fatalf("missing verifier err=%v", err)
	}
	if _, err := g.CompleteSignIn(context.Background(), "unknown", "v"); !errors.Is(err, apperr.AuthInitiation) {
		t.Fatalf("unknown code err=%v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got, ok := auth.NormalizeEmail(" A@Example.COM "); !ok || got != "a@example.com" {
		t.Fatalf("NormalizeEmail()=%q,%v", got, ok)
	}
	if _, ok := auth.NormalizeEmail("\"x\" <x@example.com>"); ok {
		t.Fatalf("display-name form accepted")
	}
}

func TestGateway_MagicLinkSendOutlivesCallerCancel(t *testing.T) {
	t.Parallel()

	g, p := newGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := g.BeginMagicLink(ctx, "late@example.com", "/trips")
	if err != nil {
		t.Fatalf("BeginMagicLink() err=%v", err)
	}
	if a.State != auth.AttemptSent {
		t.Fatalf("attempt=%+v, want sent", a)
	}
	if _, ok := p.LastLink("late@example.com"); !ok {
		t.Fatalf("no magic link sent")
	}
}
