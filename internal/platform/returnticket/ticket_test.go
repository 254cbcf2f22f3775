package returnticket

import (
	"net/http/httptest"
	"net/url"
	"testing"
)

func decodeCallback(t *testing.T, c Codec, callback string) string {
	t.Helper()
	u, err := url.Parse(callback)
	if err != nil {
		t.Fatalf("parse callback %q: %v", callback, err)
	}
	return c.Decode(u.Query())
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example/")
	paths := []string{
		"/trips",
		"/trips/3f1c2a9e-0b7d-4c55-9d4e-8a1f0e6b2c11",
		"/trips/T1?tab=budget&x=1",
		"/trips/T1?next=%2Fother&utm=a+b",
		"/trips/T1#lobby",
		"/café/ünïcode path",
	}
	for _, p := range paths {
		got := decodeCallback(t, c, c.Encode(p))
		if got != p {
			t.Fatalf("Decode(Encode(%q))=%q", p, got)
		}
	}
}

func TestCodec_EncodeSurvivesProviderAppendingCode(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example")
	cb := c.Encode("/trips/T1?tab=x") + "&code=abc123"
	if got := decodeCallback(t, c, cb); got != "/trips/T1?tab=x" {
		t.Fatalf("Decode=%q", got)
	}
}

func TestCodec_EncodeShape(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example/")
	want := "https://pact.example/auth/callback?next=%2Ftrips%2FT1%3Fa%3D1"
	if got := c.Encode("/trips/T1?a=1"); got != want {
		t.Fatalf("Encode=%q, want %q", got, want)
	}
}

func TestCodec_DecodeFallsBack(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example")
	for _, raw := range []string{
		"",
		"trips/T1",
		"https://evil.example/x",
		"//evil.example/x",
		`/\evil.example`,
		"/trips/\x00",
	} {
		q := url.Values{}
		if raw != "" {
			q.Set(Param, raw)
		}
		if got := c.Decode(q); got != DefaultFallback {
			t.Fatalf("Decode(%q)=%q, want fallback", raw, got)
		}
	}
}

func TestCodec_FromRequestUnparseableQuery(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example")
	r := httptest.NewRequest("GET", "/auth/callback?next=%zz", nil)
	if got := c.FromRequest(r); got != DefaultFallback {
		t.Fatalf("FromRequest=%q, want fallback", got)
	}
}

func TestCodec_EntryURL(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example")
	got := c.EntryURL("/trips/T1")
	if got != "/enter?next=%2Ftrips%2FT1" {
		t.Fatalf("EntryURL=%q", got)
	}
	u, _ := url.Parse(got)
	if dest := c.Decode(u.Query()); dest != "/trips/T1" {
		t.Fatalf("entry ticket decoded to %q", dest)
	}
}

func TestCodec_Absolute(t *testing.T) {
	t.Parallel()

	c := NewCodec("https://pact.example/")
	if got := c.Absolute("/trips/T1"); got != "https://pact.example/trips/T1" {
		t.Fatalf("Absolute=%q", got)
	}
}
