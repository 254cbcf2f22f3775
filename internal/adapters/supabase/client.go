// Package supabase is an identity.Provider backed by Supabase Auth (GoTrue).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	supabaseauth "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"

	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/identity"
)

const defaultTimeout = 10 * time.Second

var (
	ErrMissingURL     = errors.New("supabase: project url required")
	ErrMissingAnonKey = errors.New("supabase: anon key required")
)

type Config struct {
	// URL is the project URL, e.g. https://abcd.supabase.co.
	URL     string
	AnonKey string

	// Providers lists the OAuth providers enabled for the project. Defaults to google.
	Providers []string

	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client exchanges codes and signs out through auth-go. Authorize and OTP requests are built here
// because they must carry redirect_to and the gateway's own PKCE challenge.
type Client struct {
	authURL   string
	anonKey   string
	providers map[string]struct{}
	http      *http.Client
	auth      supabaseauth.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, ErrMissingAnonKey
	}
	providers := cfg.Providers
	if len(providers) == 0 {
		providers = []string{"google"}
	}
	set := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		set[domain.NormalizeProvider(p)] = struct{}{}
	}

	httpClient := http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient.Transport = statusTransport{base: transport}

	authURL := base + "/auth/v1"
	return &Client{
		authURL:   authURL,
		anonKey:   cfg.AnonKey,
		providers: set,
		http:      &httpClient,
		auth:      supabaseauth.New("", cfg.AnonKey).WithCustomAuthURL(authURL).WithClient(httpClient),
	}, nil
}

// Providers returns the enabled OAuth provider names, sorted.
func (c *Client) Providers() []string {
	out := make([]string, 0, len(c.providers))
	for p := range c.providers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (c *Client) AuthorizeURL(_ context.Context, provider, callbackURL string, pkce identity.PKCE) (string, error) {
	provider = domain.NormalizeProvider(provider)
	if _, ok := c.providers[provider]; !ok {
		return "", fmt.Errorf("%w: oauth provider %q is not enabled", identity.ErrRejected, provider)
	}
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", callbackURL)
	q.Set("code_challenge", pkce.Challenge)
	q.Set("code_challenge_method", strings.ToLower(pkce.Method))
	return c.authURL + "/authorize?" + q.Encode(), nil
}

type otpRequest struct {
	Email               string `json:"email"`
	CreateUser          bool   `json:"create_user"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

func (c *Client) SendMagicLink(ctx context.Context, email, callbackURL string, pkce identity.PKCE) error {
	b, err := json.Marshal(otpRequest{
		Email:               email,
		CreateUser:          true,
		CodeChallenge:       pkce.Challenge,
		CodeChallengeMethod: strings.ToLower(pkce.Method),
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	q := url.Values{}
	q.Set("redirect_to", callbackURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/otp?"+q.Encode(), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (identity.Tokens, error) {
	var resp *types.TokenResponse
	err := call(ctx, func() error {
		var err error
		resp, err = c.auth.Token(types.TokenRequest{
			GrantType:    "pkce",
			Code:         code,
			CodeVerifier: verifier,
		})
		return err
	})
	if err != nil {
		return identity.Tokens{}, err
	}
	if resp == nil || resp.AccessToken == "" || resp.User.ID == uuid.Nil {
		return identity.Tokens{}, fmt.Errorf("%w: token response without session", identity.ErrUnavailable)
	}
	return identity.Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    int64(resp.ExpiresIn),
		User:         domain.User{ID: domain.UserID(resp.User.ID.String()), Email: resp.User.Email},
	}, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return call(ctx, func() error {
		return c.auth.WithToken(accessToken).Logout()
	})
}

// call runs fn, which has no context of its own, and stops waiting once ctx is done.
// The HTTP client timeout bounds the abandoned request.
func call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			return classify(err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, ctx.Err())
	}
}

func classify(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		if se.status >= 500 || se.status == http.StatusTooManyRequests {
			return fmt.Errorf("%w: status=%d: %s", identity.ErrUnavailable, se.status, se.msg)
		}
		return fmt.Errorf("%w: status=%d: %s", identity.ErrRejected, se.status, se.msg)
	}
	return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
}

// statusError is a GoTrue error response, surfaced by statusTransport before any caller decodes it.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.status, e.msg)
}

// statusTransport turns 4xx/5xx responses into *statusError so every call path, auth-go's included,
// classifies failures the same way.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.text()
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, &statusError{status: resp.StatusCode, msg: msg}
}

// apiError covers both GoTrue error shapes: {"msg": ...} and {"error": ..., "error_description": ...}.
type apiError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return ""
}
