// Package returnticket carries a caller's post-authentication destination through the login
// redirect chain as the `next` query parameter.
package returnticket

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"
)

const (
	// Param is the query parameter that carries the destination.
	Param = "next"

	DefaultCallbackPath = "/auth/callback"
	DefaultEntryPath    = "/enter"
	DefaultFallback     = "/trips"
)

// Codec encodes destinations into callback/entry URLs and decodes them back.
type Codec struct {
	// BaseURL is the public origin of this service, e.g. "https://pact.example".
	BaseURL      string
	CallbackPath string
	EntryPath    string
	Fallback     string
}

// NewCodec returns a Codec with default paths for the given public base URL.
func NewCodec(baseURL string) Codec {
	return Codec{
		BaseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		CallbackPath: DefaultCallbackPath,
		EntryPath:    DefaultEntryPath,
		Fallback:     DefaultFallback,
	}
}

// Encode returns the absolute callback URL that embeds dest.
func (c Codec) Encode(dest string) string {
	return c.BaseURL + c.callbackPath() + "?" + Param + "=" + url.QueryEscape(dest)
}

// Absolute returns the public URL of the local path p.
func (c Codec) Absolute(p string) string {
	return c.BaseURL + p
}

// EntryURL returns the relative entry route carrying dest.
func (c Codec) EntryURL(dest string) string {
	p := c.EntryPath
	if p == "" {
		p = DefaultEntryPath
	}
	return p + "?" + Param + "=" + url.QueryEscape(dest)
}

// Decode extracts the destination from callback query values, falling back when absent or unsafe.
func (c Codec) Decode(q url.Values) string {
	dest := q.Get(Param)
	if !IsLocalPath(dest) {
		return c.FallbackPath()
	}
	return dest
}

// FromRequest decodes the destination carried by r.
func (c Codec) FromRequest(r *http.Request) string {
	if r == nil || r.URL == nil {
		return c.FallbackPath()
	}
	return c.Decode(r.URL.Query())
}

// IsLocalPath reports whether dest is a same-origin absolute path.
// Scheme-relative ("//host") and backslash forms are refused so a ticket cannot leave the site.
func IsLocalPath(dest string) bool {
	if dest == "" || dest[0] != '/' {
		return false
	}
	if strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, `/\`) {
		return false
	}
	for _, r := range dest {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func (c Codec) callbackPath() string {
	if c.CallbackPath == "" {
		return DefaultCallbackPath
	}
	return c.CallbackPath
}

// FallbackPath is where callers land when no usable destination was carried.
func (c Codec) FallbackPath() string {
	if c.Fallback == "" {
		return DefaultFallback
	}
	return c.Fallback
}
