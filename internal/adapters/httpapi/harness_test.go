package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	memactivitylog "github.com/pactsquad/pact-api/internal/adapters/memory/activitylog"
	memclock "github.com/pactsquad/pact-api/internal/adapters/memory/clock"
	memidempotency "github.com/pactsquad/pact-api/internal/adapters/memory/idempotency"
	memidentity "github.com/pactsquad/pact-api/internal/adapters/memory/identity"
	memmemberrepo "github.com/pactsquad/pact-api/internal/adapters/memory/memberrepo"
	"github.com/pactsquad/pact-api/internal/adapters/memory/tables"
	memtriprepo "github.com/pactsquad/pact-api/internal/adapters/memory/triprepo"
	"github.com/pactsquad/pact-api/internal/app/access"
	"github.com/pactsquad/pact-api/internal/app/auth"
	"github.com/pactsquad/pact-api/internal/app/trips"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/platform/auth/sessiontoken"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
)

const (
	testBaseURL = "http://pact.test"
	testIssuer  = "pact-test"
)

var testSecret = []byte("test-signing-secret-0123456789abcdef")

type testAPI struct {
	handler  http.Handler
	provider *memidentity.Provider
	issuer   *sessiontoken.Issuer
	db       *tables.DB
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	db := tables.New()
	tripsRepo := memtriprepo.NewRepo(db)
	membersRepo := memmemberrepo.NewRepo(db)

	issuer := sessiontoken.NewIssuer(sessiontoken.IssuerConfig{
		SigningSecret: testSecret,
		Issuer:        testIssuer,
		TokenTTL:      time.Hour,
	})
	verifier, err := sessiontoken.NewVerifier(sessiontoken.Config{
		Issuer:     testIssuer,
		HMACSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	provider := memidentity.NewProvider(issuer, zap.NewNop())
	tickets := returnticket.NewCodec(testBaseURL)

	handler := NewRouter(Deps{
		Gateway:   auth.NewGateway(provider, tickets, time.Second),
		Access:    access.NewController(tripsRepo, membersRepo, memactivitylog.NewReader(db), clk, time.Second),
		Trips:     trips.NewService(tripsRepo, clk, time.Second),
		Sessions:  NewSessionResolver(verifier, DefaultSessionCookie, tickets),
		Idem:      memidempotency.NewStore(time.Hour, clk),
		Tickets:   tickets,
		Cookies:   Cookies{SessionName: DefaultSessionCookie},
		Providers: provider.Providers(),
		Clock:     clk,
		Logger:    zap.NewNop(),
	})
	return &testAPI{handler: handler, provider: provider, issuer: issuer, db: db}
}

func (a *testAPI) token(t *testing.T, id, email string) string {
	t.Helper()
	tok, _, err := a.issuer.Issue(domain.User{ID: domain.UserID(id), Email: email})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

type reqOpt func(*http.Request)

func bearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookies(cs ...*http.Cookie) reqOpt {
	return func(r *http.Request) {
		for _, c := range cs {
			r.AddCookie(c)
		}
	}
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (a *testAPI) do(t *testing.T, method, target string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return v
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// localTarget strips the origin from an absolute redirect so it can be replayed against the router.
func localTarget(t *testing.T, location string) string {
	t.Helper()
	u, err := url.Parse(location)
	if err != nil {
		t.Fatalf("parse location %q: %v", location, err)
	}
	return u.RequestURI()
}

type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"requestId"`
	} `json:"error"`
}
