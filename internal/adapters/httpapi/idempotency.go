package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pactsquad/pact-api/internal/domain"
	"github.com/pactsquad/pact-api/internal/ports/out/idempotency"
)

const idempotencyHeader = "Idempotency-Key"

// idemRequest is one request that may be replayed under an Idempotency-Key.
//
// Two records are kept per key: a meta record (BodyHash "") holding the body hash first seen with
// the key, and the response record keyed by the full fingerprint.
type idemRequest struct {
	meta idempotency.Fingerprint
	resp idempotency.Fingerprint
}

func newIdemRequest(r *http.Request, user domain.UserID, route, bodyHash string) (idemRequest, bool) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		return idemRequest{}, false
	}
	resp := idempotency.Fingerprint{
		Key:      idempotency.Key(key),
		UserID:   user,
		Method:   r.Method,
		Route:    route,
		BodyHash: bodyHash,
	}
	return idemRequest{meta: resp.Meta(), resp: resp}, true
}

// replay writes a stored response or a key-reuse conflict and reports whether it did.
func (s *Server) replay(w http.ResponseWriter, r *http.Request, req idemRequest) bool {
	if s.idem == nil {
		return false
	}
	ctx := r.Context()
	meta, ok, err := s.idem.Get(ctx, req.meta)
	if err != nil {
		s.log.Warn("idempotency lookup failed", zap.Error(err))
		return false
	}
	if ok && string(meta.Body) != req.resp.BodyHash {
		s.writeErrorCode(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
		return true
	}
	if !ok {
		s.putRecord(ctx, req.meta, idempotency.MetaRecord(req.resp.BodyHash, s.now()))
		return false
	}

	rec, ok, err := s.idem.Get(ctx, req.resp)
	if err != nil {
		s.log.Warn("idempotency lookup failed", zap.Error(err))
		return false
	}
	if !ok || !rec.Replayable() {
		return false
	}
	w.Header().Set("Idempotent-Replayed", "true")
	writeRaw(w, rec.StatusCode, rec.ContentType, rec.Body)
	return true
}

// respond writes v and, when the request carried a key, stores it for replay.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, req idemRequest, keyed bool, status int, v any) {
	b, err := encodeJSON(v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if keyed && s.idem != nil {
		s.putRecord(r.Context(), req.resp, idempotency.Record{
			StatusCode:  status,
			ContentType: "application/json",
			Body:        b,
			CreatedAt:   s.now(),
		})
	}
	writeRaw(w, status, "application/json", b)
}

func (s *Server) putRecord(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) {
	if err := s.idem.Put(ctx, fp, rec); err != nil {
		s.log.Warn("idempotency store failed", zap.Error(err), zap.String("route", fp.Route))
	}
}

func hashBody(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
