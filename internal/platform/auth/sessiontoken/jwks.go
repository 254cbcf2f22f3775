package sessiontoken

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// keySet caches RSA keys fetched from a JWKS endpoint.
//
// Refresh rules:
//   - refresh periodically (rotation), even if the kid is cached
//   - refresh on unknown kid, bounded by the min refresh interval
//   - concurrent refreshes share one fetch
type keySet struct {
	url                string
	refreshInterval    time.Duration
	minRefreshInterval time.Duration
	client             *http.Client
	clock              Clock

	mu          sync.Mutex
	keysByKID   map[string]*rsa.PublicKey
	lastRefresh time.Time
	refreshing  bool
	refreshDone chan struct{}
}

func newKeySet(cfg Config, client *http.Client, clock Clock) *keySet {
	return &keySet{
		url:                cfg.JWKSURL,
		refreshInterval:    cfg.JWKSRefreshInterval,
		minRefreshInterval: cfg.JWKSMinRefreshInterval,
		client:             client,
		clock:              clock,
		keysByKID:          map[string]*rsa.PublicKey{},
	}
}

func (k *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrInvalidToken)
	}
	if err := k.maybeRefresh(ctx, kid); err != nil {
		return nil, err
	}
	k.mu.Lock()
	pub := k.keysByKID[kid]
	k.mu.Unlock()
	if pub == nil {
		return nil, fmt.Errorf("%w: unknown kid %q", ErrInvalidToken, kid)
	}
	return pub, nil
}

func (k *keySet) maybeRefresh(ctx context.Context, kid string) error {
	now := k.clock.Now()

	k.mu.Lock()
	intervalDue := !k.lastRefresh.IsZero() && k.refreshInterval > 0 && now.Sub(k.lastRefresh) >= k.refreshInterval
	unknownKid := k.keysByKID[kid] == nil
	unknownAllowed := k.lastRefresh.IsZero() || k.minRefreshInterval <= 0 || now.Sub(k.lastRefresh) >= k.minRefreshInterval

	if !intervalDue && !(unknownKid && unknownAllowed) {
		k.mu.Unlock()
		return nil
	}

	if k.refreshing {
		ch := k.refreshDone
		k.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	k.refreshing = true
	k.refreshDone = make(chan struct{})
	ch := k.refreshDone
	k.mu.Unlock()

	err := k.refresh(ctx)

	k.mu.Lock()
	k.refreshing = false
	close(ch)
	k.mu.Unlock()

	return err
}

func (k *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	keys, err := parseJWKS(body)
	if err != nil {
		return err
	}

	k.mu.Lock()
	k.keysByKID = keys
	k.lastRefresh = k.clock.Now()
	k.mu.Unlock()
	return nil
}

type jwkDoc struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func parseJWKS(b []byte) (map[string]*rsa.PublicKey, error) {
	var set jwkDoc
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, err
	}
	out := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		e := new(big.Int).SetBytes(eb).Int64()
		if e <= 0 || e > int64(^uint32(0)>>1) {
			return nil, fmt.Errorf("invalid jwk exponent")
		}
		out[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e)}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable jwks keys")
	}
	return out, nil
}
