package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/app/auth"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
)

// AuthFailedParam is added to the entry URL when a callback could not establish a session.
const AuthFailedParam = "auth_failed"

type enterResponse struct {
	Next      string                    `json:"next"`
	Providers []string                  `json:"providers"`
	MagicLink bool                      `json:"magicLink"`
	Error     nullable.Nullable[string] `json:"error,omitempty"`
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	next := s.tickets.FromRequest(r)
	if _, ok := s.sessions.Resolve(r); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	resp := enterResponse{Next: next, Providers: s.providers, MagicLink: true}
	if e := r.URL.Query().Get("error"); e != "" {
		resp.Error = nullable.NewNullableWithValue(e)
	}
	if resp.Providers == nil {
		resp.Providers = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	next := s.tickets.FromRequest(r)
	start, err := s.gateway.BeginOAuth(r.Context(), chi.URLParam(r, "provider"), next)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.cookies.SetVerifier(w, start.Verifier)
	http.Redirect(w, r, start.RedirectURL, http.StatusSeeOther)
}

type magicLinkRequest struct {
	Email openapi_types.Email `json:"email"`
	Next  string              `json:"next"`
}

type magicLinkResponse struct {
	State string                       `json:"state"`
	Email string                       `json:"email,omitempty"`
	Error nullable.Nullable[errorBody] `json:"error,omitempty"`
}

func (s *Server) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeMagicLinkError(w, r, "", apperr.NewAuthInput("enter a valid email address", map[string]any{"email": "must be a valid email address"}))
		return
	}
	next := s.tickets.Decode(url.Values{returnticket.Param: {req.Next}})

	attempt, err := s.gateway.BeginMagicLink(r.Context(), string(req.Email), next)
	if err != nil {
		s.writeMagicLinkError(w, r, attempt.Email, err)
		return
	}
	s.cookies.SetVerifier(w, attempt.Verifier)
	writeJSON(w, http.StatusAccepted, magicLinkResponse{State: string(attempt.State), Email: attempt.Email})
}

func (s *Server) writeMagicLinkError(w http.ResponseWriter, r *http.Request, email string, err error) {
	status, body := statusAndBody(r, err)
	s.logError(r, status, err)
	writeJSON(w, status, magicLinkResponse{
		State: string(auth.AttemptIdle),
		Email: email,
		Error: nullable.NewNullableWithValue(body),
	})
}

// handleCallback completes sign-in. It shares nothing with the request that started sign-in
// except the return ticket in the URL and the verifier cookie.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	next := s.tickets.Decode(q)
	failed := s.tickets.EntryURL(next) + "&error=" + AuthFailedParam

	if e := q.Get("error"); e != "" {
		s.log.Info("provider returned sign-in error",
			zap.String("error", e),
			zap.String("error_description", q.Get("error_description")),
		)
		s.cookies.ClearVerifier(w)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	signIn, err := s.gateway.CompleteSignIn(r.Context(), q.Get("code"), s.cookies.Verifier(r))
	s.cookies.ClearVerifier(w)
	if err != nil {
		status, _ := statusAndBody(r, err)
		s.logError(r, status, err)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	s.cookies.SetSession(w, signIn.AccessToken, time.Duration(signIn.ExpiresIn)*time.Second)
	s.log.Info("signed in", zap.String("user_id", string(signIn.User.ID)))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := s.sessions.Token(r); token != "" {
		if err := s.gateway.SignOut(r.Context(), token); err != nil {
			s.log.Warn("provider sign-out failed", zap.Error(err))
		}
	}
	s.cookies.ClearSession(w)
	s.cookies.ClearVerifier(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
