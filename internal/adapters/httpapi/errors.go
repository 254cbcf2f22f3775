package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/pactsquad/pact-api/internal/app/apperr"
)

type errorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestID nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func newErrorBody(r *http.Request, code, message string, details map[string]any) errorBody {
	b := errorBody{Code: code, Message: message}
	if details != nil {
		b.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		b.RequestID = nullable.NewNullableWithValue(rid)
	}
	return b
}

// statusAndBody maps err to the response status and error body. Errors outside the apperr
// taxonomy are reported as 500 without their message.
func statusAndBody(r *http.Request, err error) (int, errorBody) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Status, newErrorBody(r, ae.Code, ae.Message, ae.Details)
	}
	return http.StatusInternalServerError, newErrorBody(r, "INTERNAL", "internal error", nil)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusAndBody(r, err)
	s.logError(r, status, err)
	writeJSON(w, status, errorResponse{Error: body})
}

func (s *Server) writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorResponse{Error: newErrorBody(r, code, message, details)})
}

func (s *Server) logError(r *http.Request, status int, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", fields...)
		return
	}
	s.log.Debug("request rejected", fields...)
}

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := encodeJSON(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, "application/json", b)
}

func writeRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
