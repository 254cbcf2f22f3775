package idempotency

import (
	"context"
	"time"

	"github.com/pactsquad/pact-api/internal/domain"
)

// Key is the value of the Idempotency-Key request header.
type Key string

// Fingerprint scopes a stored response to the caller, the route template and the request body.
// Two users sending the same key never see each other's records.
type Fingerprint struct {
	Key      Key
	UserID   domain.UserID
	Method   string
	Route    string
	BodyHash string
}

// Meta returns the fingerprint of the record that pins the body hash first sent with fp.Key.
func (fp Fingerprint) Meta() Fingerprint {
	fp.BodyHash = ""
	return fp
}

// Record is a stored response. A record with StatusCode 0 is a meta record whose Body is a body hash.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

func MetaRecord(bodyHash string, at time.Time) Record {
	return Record{ContentType: "text/plain", Body: []byte(bodyHash), CreatedAt: at}
}

// Replayable reports whether rec holds a response rather than a body hash.
func (rec Record) Replayable() bool { return rec.StatusCode != 0 }

// Store keeps records long enough for client retries to be answered from them.
// Implementations may expire records; an expired record reads as a miss.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
