package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pactsquad/pact-api/internal/app/access"
	"github.com/pactsquad/pact-api/internal/app/auth"
	"github.com/pactsquad/pact-api/internal/app/trips"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
	"github.com/pactsquad/pact-api/internal/ports/out/clock"
	"github.com/pactsquad/pact-api/internal/ports/out/idempotency"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Gateway  *auth.Gateway
	Access   *access.Controller
	Trips    *trips.Service
	Sessions *SessionResolver
	Idem     idempotency.Store
	Tickets  returnticket.Codec
	Cookies  Cookies

	// Providers are the OAuth providers offered on the entry route.
	Providers []string

	Clock  clock.Clock
	Logger *zap.Logger
}

// Server holds the handlers. Build it with NewRouter.
type Server struct {
	gateway   *auth.Gateway
	access    *access.Controller
	trips     *trips.Service
	sessions  *SessionResolver
	idem      idempotency.Store
	tickets   returnticket.Codec
	cookies   Cookies
	providers []string
	clock     clock.Clock
	log       *zap.Logger
}

func newServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	providers := append([]string(nil), d.Providers...)
	return &Server{
		gateway:   d.Gateway,
		access:    d.Access,
		trips:     d.Trips,
		sessions:  d.Sessions,
		idem:      d.Idem,
		tickets:   d.Tickets,
		cookies:   d.Cookies,
		providers: providers,
		clock:     d.Clock,
		log:       log,
	}
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

// NewRouter constructs the API HTTP router.
func NewRouter(d Deps) http.Handler {
	s := newServer(d)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/enter", s.handleEnter)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/oauth/{provider}", s.handleOAuth)
		r.Post("/oauth/{provider}", s.handleOAuth)
		r.Post("/magic-link", s.handleMagicLink)
		r.Get("/callback", s.handleCallback)
		r.Post("/signout", s.handleSignOut)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.RequireSession(s.writeError))
		r.Get("/me", s.handleMe)
		r.Get("/trips", s.handleListTrips)
		r.Post("/trips", s.handleCreateTrip)
		r.Get("/trips/{tripId}", s.handleLobby)
		r.Post("/trips/{tripId}/join", s.handleJoin)
	})
	return r
}
