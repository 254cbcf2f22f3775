package sessiontoken_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	memclock "github.com/pactsquad/pact-api/internal/adapters/memory/clock"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/platform/auth/jwkstest"
	"github.com/pactsquad/pact-api/internal/platform/auth/sessiontoken"
)

const (
	testIssuer   = "https://project.supabase.co/auth/v1"
	testAudience = "authenticated"
	testSecret   = "super-secret"
)

func newJWKSVerifier(t *testing.T, srv *jwkstest.Server, clk *memclock.ManualClock, refresh time.Duration) *sessiontoken.Verifier {
	t.Helper()
	v, err := sessiontoken.NewVerifierWithOptions(sessiontoken.Config{
		Issuer:              testIssuer,
		Audience:            testAudience,
		JWKSURL:             srv.URL,
		JWKSRefreshInterval: refresh,
		HTTPTimeout:         2 * time.Second,
	}, nil, clk)
	if err != nil {
		t.Fatalf("NewVerifierWithOptions: %v", err)
	}
	return v
}

func TestVerifier_RS256_ValidToken(t *testing.T) {
	t.Parallel()

	srv := jwkstest.NewServer()
	defer srv.Close()
	kp, err := jwkstest.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	srv.SetKeys(kp)

	clk := memclock.NewManualClock(time.Unix(1700000000, 0))
	v := newJWKSVerifier(t, srv, clk, 10*time.Minute)

	tok, err := jwkstest.MintRS256(kp, testIssuer, testAudience, "user-123", "u@example.com", clk.Now(), 5*time.Minute)
	if err != nil {
		t.Fatalf("MintRS256: %v", err)
	}
	s, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.UserID != "user-123" || s.Email != "u@example.com" {
		t.Fatalf("session=%+v", s)
	}
}

func TestVerifier_RS256_RejectsExpiredWrongIssuerAudienceAndSignature(t *testing.T) {
	t.Parallel()

	srv := jwkstest.NewServer()
	defer srv.Close()
	kp, _ := jwkstest.GenerateRSAKeypair("kid-1")
	srv.SetKeys(kp)

	clk := memclock.NewManualClock(time.Unix(1700000000, 0))
	v := newJWKSVerifier(t, srv, clk, 10*time.Minute)

	expired, _ := jwkstest.MintRS256(kp, testIssuer, testAudience, "user-123", "", clk.Now(), -time.Minute)
	if _, err := v.Verify(context.Background(), expired); !errors.Is(err, sessiontoken.ErrExpiredToken) {
		t.Fatalf("expired err=%v, want ErrExpiredToken", err)
	}

	wrongIss, _ := jwkstest.MintRS256(kp, "wrong-iss", testAudience, "user-123", "", clk.Now(), 5*time.Minute)
	if _, err := v.Verify(context.Background(), wrongIss); !errors.Is(err, sessiontoken.ErrInvalidToken) {
		t.Fatalf("wrong iss err=%v, want ErrInvalidToken", err)
	}

	wrongAud, _ := jwkstest.MintRS256(kp, testIssuer, "wrong-aud", "user-123", "", clk.Now(), 5*time.Minute)
	if _, err := v.Verify(context.Background(), wrongAud); !errors.Is(err, sessiontoken.ErrInvalidToken) {
		t.Fatalf("wrong aud err=%v, want ErrInvalidToken", err)
	}

	noExp, _ := jwkstest.MintRS256(kp, testIssuer, testAudience, "user-123", "", clk.Now(), 0)
	if _, err := v.Verify(context.Background(), noExp); err == nil {
		t.Fatalf("expected error for token without exp")
	}

	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	forged, _ := jwkstest.MintRS256(jwkstest.Keypair{Kid: "kid-1", Private: other}, testIssuer, testAudience, "user-123", "", clk.Now(), 5*time.Minute)
	if _, err := v.Verify(context.Background(), forged); !errors.Is(err, sessiontoken.ErrInvalidToken) {
		t.Fatalf("forged err=%v, want ErrInvalidToken", err)
	}
}

func TestVerifier_RS256_KeyRotation(t *testing.T) {
	t.Parallel()

	srv := jwkstest.NewServer()
	defer srv.Close()
	k1, _ := jwkstest.GenerateRSAKeypair("kid-1")
	k2, _ := jwkstest.GenerateRSAKeypair("kid-2")
	srv.SetKeys(k1)

	clk := memclock.NewManualClock(time.Unix(1700000000, 0))
	v := newJWKSVerifier(t, srv, clk, time.Second)

	tok1, _ := jwkstest.MintRS256(k1, testIssuer, testAudience, "user-1", "", clk.Now(), 5*time.Minute)
	if _, err := v.Verify(context.Background(), tok1); err != nil {
		t.Fatalf("tok1 Verify: %v", err)
	}

	srv.SetKeys(k2)
	clk.Advance(2 * time.Second)

	if _, err := v.Verify(context.Background(), tok1); err == nil {
		t.Fatalf("expected tok1 rejected after rotation")
	}
	tok2, _ := jwkstest.MintRS256(k2, testIssuer, testAudience, "user-2", "", clk.Now(), 5*time.Minute)
	s, err := v.Verify(context.Background(), tok2)
	if err != nil {
		t.Fatalf("tok2 Verify: %v", err)
	}
	if s.UserID != "user-2" {
		t.Fatalf("UserID=%q, want user-2", s.UserID)
	}
}

func TestVerifier_RS256_UnknownKidRefreshBoundedByMinInterval(t *testing.T) {
	t.Parallel()

	srv := jwkstest.NewServer()
	defer srv.Close()
	k1, _ := jwkstest.GenerateRSAKeypair("kid-1")
	stranger, _ := jwkstest.GenerateRSAKeypair("kid-unknown")
	srv.SetKeys(k1)

	clk := memclock.NewManualClock(time.Unix(1700000000, 0))
	v, err := sessiontoken.NewVerifierWithOptions(sessiontoken.Config{
		Issuer:                 testIssuer,
		JWKSURL:                srv.URL,
		JWKSRefreshInterval:    time.Hour,
		JWKSMinRefreshInterval: time.Minute,
	}, nil, clk)
	if err != nil {
		t.Fatalf("NewVerifierWithOptions: %v", err)
	}

	tok1, _ := jwkstest.MintRS256(k1, testIssuer, "", "user-1", "", clk.Now(), 5*time.Minute)
	if _, err := v.Verify(context.Background(), tok1); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	bad, _ := jwkstest.MintRS256(stranger, testIssuer, "", "user-1", "", clk.Now(), 5*time.Minute)
	for i := 0; i < 5; i++ {
		if _, err := v.Verify(context.Background(), bad); err == nil {
			t.Fatalf("expected unknown kid rejected")
		}
	}
	if got := srv.Fetches(); got != 1 {
		t.Fatalf("fetches=%d, want 1", got)
	}
}

func TestVerifier_HS256_IssuerRoundTrip(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	issuer := sessiontoken.NewIssuer(sessiontoken.IssuerConfig{
		SigningSecret: []byte(testSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		TokenTTL:      30 * time.Minute,
		Clock:         clk,
	})
	v, err := sessiontoken.NewVerifierWithOptions(sessiontoken.Config{
		Issuer:     testIssuer,
		Audience:   testAudience,
		HMACSecret: []byte(testSecret),
	}, nil, clk)
	if err != nil {
		t.Fatalf("NewVerifierWithOptions: %v", err)
	}

	tok, expiresIn, err := issuer.Issue(domain.User{ID: "user-9", Email: "nine@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if expiresIn != 1800 {
		t.Fatalf("expiresIn=%d, want 1800", expiresIn)
	}
	s, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.UserID != "user-9" || s.Email != "nine@example.com" {
		t.Fatalf("session=%+v", s)
	}

	clk.Advance(31 * time.Minute)
	if _, err := v.Verify(context.Background(), tok); !errors.Is(err, sessiontoken.ErrExpiredToken) {
		t.Fatalf("err=%v, want ErrExpiredToken", err)
	}
}

func TestVerifier_HS256_ClockSkew(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	clk := memclock.NewManualClock(now)
	v, _ := sessiontoken.NewVerifierWithOptions(sessiontoken.Config{
		Issuer:     testIssuer,
		HMACSecret: []byte(testSecret),
		ClockSkew:  30 * time.Second,
	}, nil, clk)

	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, sessiontoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		},
	}).SignedString([]byte(testSecret))

	if _, err := v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify within skew: %v", err)
	}
}

func TestVerifier_RejectsMissingTokenSubjectAndForeignAlgorithm(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v, _ := sessiontoken.NewVerifierWithOptions(sessiontoken.Config{
		Issuer:     testIssuer,
		HMACSecret: []byte(testSecret),
	}, nil, memclock.NewManualClock(now))

	if _, err := v.Verify(context.Background(), "  "); !errors.Is(err, sessiontoken.ErrMissingToken) {
		t.Fatalf("empty err=%v, want ErrMissingToken", err)
	}

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    testIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString([]byte(testSecret))
	if _, err := v.Verify(context.Background(), noSub); !errors.Is(err, sessiontoken.ErrMissingSubject) {
		t.Fatalf("no sub err=%v, want ErrMissingSubject", err)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString([]byte(testSecret))
	if _, err := v.Verify(context.Background(), hs512); !errors.Is(err, sessiontoken.ErrInvalidToken) {
		t.Fatalf("hs512 err=%v, want ErrInvalidToken", err)
	}
}

func TestNewVerifier_RequiresIssuerAndKey(t *testing.T) {
	t.Parallel()

	if _, err := sessiontoken.NewVerifier(sessiontoken.Config{HMACSecret: []byte("x")}); !errors.Is(err, sessiontoken.ErrMissingIssuer) {
		t.Fatalf("err=%v, want ErrMissingIssuer", err)
	}
	if _, err := sessiontoken.NewVerifier(sessiontoken.Config{Issuer: "iss"}); !errors.Is(err, sessiontoken.ErrNoVerificationKey) {
		t.Fatalf("err=%v, want ErrNoVerificationKey", err)
	}
}
