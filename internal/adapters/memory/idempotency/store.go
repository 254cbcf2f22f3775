package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/pactsquad/pact-api/internal/ports/out/clock"
	"github.com/pactsquad/pact-api/internal/ports/out/idempotency"
)

type entry struct {
	rec      idempotency.Record
	storedAt time.Time
}

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use. Entries older than the TTL are dropped lazily on Get;
// a zero TTL keeps them for the life of the process.
type Store struct {
	ttl time.Duration
	clk clock.Clock

	mu sync.Mutex
	m  map[idempotency.Fingerprint]entry
}

func NewStore(ttl time.Duration, clk clock.Clock) *Store {
	return &Store{
		ttl: ttl,
		clk: clk,
		m:   make(map[idempotency.Fingerprint]entry),
	}
}

func (s *Store) now() time.Time {
	if s.clk == nil {
		return time.Now()
	}
	return s.clk.Now()
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	if s.ttl > 0 && s.now().Sub(e.storedAt) >= s.ttl {
		delete(s.m, fp)
		return idempotency.Record{}, false, nil
	}
	return e.rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	rec.Body = append([]byte(nil), rec.Body...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[fp] = entry{rec: rec, storedAt: s.now()}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
