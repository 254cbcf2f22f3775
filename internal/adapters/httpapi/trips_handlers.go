package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pactsquad/pact-api/internal/app/access"
	"github.com/pactsquad/pact-api/internal/app/apperr"
	"github.com/pactsquad/pact-api/internal/app/trips"
	"github.com/pactsquad/pact-api/internal/domain"
)

type tripDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type memberDTO struct {
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	IntentLevel string    `json:"intentLevel"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type activityDTO struct {
	ID        int64             `json:"id"`
	ActorID   string            `json:"actorId"`
	Type      string            `json:"type"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"createdAt"`
}

type tripSummaryDTO struct {
	tripDTO
	Role string `json:"role"`
}

// lobbyResponse carries inviteUrl only for members: sharing the lobby link is how a trip is joined.
type lobbyResponse struct {
	State     string        `json:"state"`
	Trip      tripDTO       `json:"trip"`
	Role      string        `json:"role,omitempty"`
	InviteURL string        `json:"inviteUrl,omitempty"`
	Members   []memberDTO   `json:"members,omitempty"`
	Activity  []activityDTO `json:"activity,omitempty"`
}

type meResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

type createTripRequest struct {
	Title       string `json:"title"`
	Destination string `json:"destination"`
}

type createTripResponse struct {
	TripID string `json:"tripId"`
	Status string `json:"status"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{UserID: string(sess.UserID), Email: sess.Email})
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	list, err := s.trips.ListMyTrips(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]tripSummaryDTO, 0, len(list))
	for _, t := range list {
		out = append(out, tripSummaryDTO{tripDTO: toTripDTO(t.Trip), Role: string(t.Role)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": out})
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	var body createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, apperr.NewValidation("request body must be a JSON object", map[string]any{"body": "invalid JSON"}))
		return
	}

	bodyHash, err := hashBody(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	idem, keyed := newIdemRequest(r, sess.UserID, "/trips", bodyHash)
	if keyed && s.replay(w, r, idem) {
		return
	}

	created, err := s.trips.CreateTrip(r.Context(), sess, trips.CreateTripInput{Title: body.Title, Destination: body.Destination})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, idem, keyed, http.StatusCreated, createTripResponse{TripID: string(created.ID), Status: string(created.Status)})
}

func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	a, err := s.access.Resolve(r.Context(), domain.TripID(chi.URLParam(r, "tripId")), sess)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			http.Redirect(w, r, s.tickets.FallbackPath(), http.StatusSeeOther)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toLobby(a, true))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	tripID := chi.URLParam(r, "tripId")

	bodyHash, err := hashBody(struct {
		TripID string `json:"tripId"`
	}{TripID: tripID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	idem, keyed := newIdemRequest(r, sess.UserID, "/trips/{tripId}/join", bodyHash)
	if keyed && s.replay(w, r, idem) {
		return
	}

	a, err := s.access.Join(r.Context(), domain.TripID(tripID), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r, idem, keyed, http.StatusOK, s.toLobby(a, false))
}

func (s *Server) toLobby(a access.Access, withRoster bool) lobbyResponse {
	resp := lobbyResponse{State: string(a.State), Trip: toTripDTO(a.Trip)}
	if a.State != access.StateMember || a.Membership == nil {
		return resp
	}
	resp.Role = string(a.Membership.Role)
	resp.InviteURL = s.tickets.Absolute("/trips/" + url.PathEscape(string(a.Trip.ID)))
	if !withRoster {
		return resp
	}
	resp.Members = make([]memberDTO, 0, len(a.Members))
	for _, m := range a.Members {
		resp.Members = append(resp.Members, memberDTO{
			UserID:      string(m.UserID),
			Role:        string(m.Role),
			IntentLevel: string(m.IntentLevel),
			JoinedAt:    m.JoinedAt,
		})
	}
	resp.Activity = make([]activityDTO, 0, len(a.Activity))
	for _, e := range a.Activity {
		resp.Activity = append(resp.Activity, activityDTO{
			ID:        e.ID,
			ActorID:   string(e.ActorID),
			Type:      string(e.Type),
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	return resp
}

func toTripDTO(t domain.Trip) tripDTO {
	return tripDTO{
		ID:          string(t.ID),
		Title:       t.Title,
		Destination: t.Destination,
		Status:      string(t.Status),
		CreatedBy:   string(t.CreatedBy),
		CreatedAt:   t.CreatedAt,
	}
}
