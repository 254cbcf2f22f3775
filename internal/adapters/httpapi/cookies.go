package httpapi

import (
	"net/http"
	"time"
)

const (
	DefaultSessionCookie = "pact_session"

	verifierCookie = "pact_pkce"
	verifierMaxAge = 15 * time.Minute
)

// Cookies writes the session and PKCE verifier cookies.
type Cookies struct {
	SessionName string
	Secure      bool
}

func (c Cookies) sessionName() string {
	if c.SessionName == "" {
		return DefaultSessionCookie
	}
	return c.SessionName
}

func (c Cookies) SetSession(w http.ResponseWriter, token string, ttl time.Duration) {
	ck := &http.Cookie{
		Name:     c.sessionName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, ck)
}

func (c Cookies) ClearSession(w http.ResponseWriter) {
	c.clear(w, c.sessionName(), "/")
}

// SetVerifier keeps the PKCE verifier until the provider redirects back to the callback.
func (c Cookies) SetVerifier(w http.ResponseWriter, verifier string) {
	http.SetCookie(w, &http.Cookie{
		Name:     verifierCookie,
		Value:    verifier,
		Path:     "/auth",
		MaxAge:   int(verifierMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) Verifier(r *http.Request) string {
	ck, err := r.Cookie(verifierCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c Cookies) ClearVerifier(w http.ResponseWriter) {
	c.clear(w, verifierCookie, "/auth")
}

func (c Cookies) clear(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
