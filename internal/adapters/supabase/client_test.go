package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pactsquad/pact-api/internal/ports/out/identity"
)

const (
	testAnonKey = "anon-key"
	testUserID  = "7b0c1d52-8f3e-4c5a-9a53-2f9d3e6a1b20"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL + "/", AnonKey: testAnonKey})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresURLAndKey(t *testing.T) {
	_, err := New(Config{AnonKey: "k"})
	require.ErrorIs(t, err, ErrMissingURL)

	_, err = New(Config{URL: "https://x.supabase.co"})
	require.ErrorIs(t, err, ErrMissingAnonKey)
}

func TestAuthorizeURL(t *testing.T) {
	c, err := New(Config{URL: "https://x.supabase.co", AnonKey: testAnonKey})
	require.NoError(t, err)

	cb := "https://pact.example/auth/callback?next=%2Ftrips%2FT1"
	raw, err := c.AuthorizeURL(context.Background(), "Google", cb, identity.PKCE{Challenge: "chal", Method: "S256"})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/auth/v1/authorize", u.Path)
	require.Equal(t, "google", u.Query().Get("provider"))
	require.Equal(t, cb, u.Query().Get("redirect_to"))
	require.Equal(t, "chal", u.Query().Get("code_challenge"))
	require.Equal(t, "s256", u.Query().Get("code_challenge_method"))

	_, err = c.AuthorizeURL(context.Background(), "myspace", cb, identity.PKCE{})
	require.ErrorIs(t, err, identity.ErrRejected)
}

func TestSendMagicLink(t *testing.T) {
	var got otpRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/otp", r.URL.Path)
		require.Equal(t, "https://pact.example/auth/callback?next=%2Ftrips", r.URL.Query().Get("redirect_to"))
		require.Equal(t, testAnonKey, r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	err := c.SendMagicLink(context.Background(), "a@example.com", "https://pact.example/auth/callback?next=%2Ftrips", identity.PKCE{Challenge: "chal", Method: "S256"})
	require.NoError(t, err)
	require.Equal(t, "a@example.com", got.Email)
	require.True(t, got.CreateUser)
	require.Equal(t, "chal", got.CodeChallenge)
	require.Equal(t, "s256", got.CodeChallengeMethod)
}

func TestSendMagicLink_ErrorMapping(t *testing.T) {
	rejected := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"error_code":"validation_failed","msg":"Unable to validate email address: invalid format"}`))
	})
	err := rejected.SendMagicLink(context.Background(), "bad", "https://cb", identity.PKCE{})
	require.ErrorIs(t, err, identity.ErrRejected)
	require.Contains(t, err.Error(), "invalid format")

	down := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err = down.SendMagicLink(context.Background(), "a@example.com", "https://cb", identity.PKCE{})
	require.ErrorIs(t, err, identity.ErrUnavailable)

	limited := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	err = limited.SendMagicLink(context.Background(), "a@example.com", "https://cb", identity.PKCE{})
	require.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		require.Equal(t, testAnonKey, r.Header.Get("apikey"))
		var g struct {
			AuthCode     string `json:"auth_code"`
			CodeVerifier string `json:"code_verifier"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&g))
		if g.AuthCode != "code-1" || g.CodeVerifier != "verifier-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code verifier mismatch"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","refresh_token":"rt","expires_in":3600,"user":{"id":"` + testUserID + `","email":"a@example.com"}}`))
	})

	tokens, err := c.ExchangeCode(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)
	require.Equal(t, "at", tokens.AccessToken)
	require.Equal(t, "rt", tokens.RefreshToken)
	require.EqualValues(t, 3600, tokens.ExpiresIn)
	require.EqualValues(t, testUserID, tokens.User.ID)
	require.Equal(t, "a@example.com", tokens.User.Email)

	_, err = c.ExchangeCode(context.Background(), "code-1", "wrong")
	require.ErrorIs(t, err, identity.ErrRejected)
	require.Contains(t, err.Error(), "code verifier mismatch")
}

func TestExchangeCode_ServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.ExchangeCode(context.Background(), "code-1", "verifier-1")
	require.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestExchangeCode_StopsWaitingAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL, AnonKey: testAnonKey, Timeout: 300 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.ExchangeCode(ctx, "code-1", "verifier-1")
	require.ErrorIs(t, err, identity.ErrUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestProviders_NormalizedAndSorted(t *testing.T) {
	c, err := New(Config{URL: "https://x.supabase.co", AnonKey: testAnonKey, Providers: []string{"Google", " github", "APPLE"}})
	require.NoError(t, err)
	require.Equal(t, []string{"apple", "github", "google"}, c.Providers())
}

func TestSignOut_SendsBearer(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, "/auth/v1/logout", r.URL.Path)
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.SignOut(context.Background(), "at"))
	require.True(t, called)

	called = false
	require.NoError(t, c.SignOut(context.Background(), ""))
	require.False(t, called)
}

func TestTimeoutIsUnavailableAndNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL, AnonKey: testAnonKey})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.SendMagicLink(ctx, "a@example.com", "https://cb", identity.PKCE{})
	require.ErrorIs(t, err, identity.ErrUnavailable)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}
