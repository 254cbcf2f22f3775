// Package jwkstest serves rotating JWKS documents and mints RS256 tokens for tests.
package jwkstest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// Server is a JWKS endpoint whose key set can be swapped at runtime.
type Server struct {
	*httptest.Server
	doc     atomic.Value // []byte
	fetches atomic.Int64
}

func NewServer() *Server {
	s := &Server{}
	s.doc.Store([]byte(`{"keys":[]}`))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.doc.Load().([]byte))
	}))
	return s
}

// SetKeys replaces the published key set.
func (s *Server) SetKeys(keys ...Keypair) {
	type jwk struct {
		Kty string `json:"kty"`
		Use string `json:"use"`
		Alg string `json:"alg"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	out := struct {
		Keys []jwk `json:"keys"`
	}{Keys: make([]jwk, 0, len(keys))}
	for _, kp := range keys {
		pub := kp.Private.PublicKey
		out.Keys = append(out.Keys, jwk{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: kp.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	b, _ := json.Marshal(out)
	s.doc.Store(b)
}

// Fetches reports how many times the JWKS document was served.
func (s *Server) Fetches() int64 { return s.fetches.Load() }

// MintRS256 signs a token for sub with the given keypair. A zero ttl omits exp.
func MintRS256(kp Keypair, iss, aud, sub, email string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"iss": iss,
		"sub": sub,
		"iat": now.Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if email != "" {
		claims["email"] = email
	}
	if ttl != 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kp.Kid
	return tok.SignedString(kp.Private)
}
