package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
)

// TokenVerifier turns a provider access token into a session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Session, error)
}

// SessionResolver reads the caller's session from the session cookie or a bearer token.
type SessionResolver struct {
	verifier   TokenVerifier
	cookieName string
	tickets    returnticket.Codec
}

func NewSessionResolver(v TokenVerifier, cookieName string, tickets returnticket.Codec) *SessionResolver {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &SessionResolver{verifier: v, cookieName: cookieName, tickets: tickets}
}

// Token returns the raw session token carried by r, preferring the Authorization header.
func (s *SessionResolver) Token(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		const prefix = "Bearer "
		if len(authz) > len(prefix) && strings.EqualFold(authz[:len(prefix)], prefix) {
			return strings.TrimSpace(authz[len(prefix):])
		}
		return ""
	}
	if ck, err := r.Cookie(s.cookieName); err == nil {
		return ck.Value
	}
	return ""
}

// Resolve reports the session for r. It has no side effects.
func (s *SessionResolver) Resolve(r *http.Request) (domain.Session, bool) {
	token := s.Token(r)
	if token == "" || s.verifier == nil {
		return domain.Session{}, false
	}
	sess, err := s.verifier.Verify(r.Context(), token)
	if err != nil || sess.UserID == "" {
		return domain.Session{}, false
	}
	return sess, true
}

// RequireSession stores the resolved session in the request context. Session-less GET requests
// are redirected to the entry route carrying the requested URI; other methods get 401.
func (s *SessionResolver) RequireSession(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := s.Resolve(r)
			if !ok {
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					http.Redirect(w, r, s.tickets.EntryURL(r.URL.RequestURI()), http.StatusSeeOther)
					return
				}
				onError(w, r, apperr.NewUnauthorized("sign in to continue"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
