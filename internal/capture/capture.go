// Package capture extracts UTM parameters from a URL's query string.
package capture

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hpungsan/tern/internal/utm"
)

// Options controls extraction.
type Options struct {
	// Format is the convention of the returned keys (default: underscore).
	Format utm.Format

	// Allowlist restricts capture to these keys. Entries may be in either
	// convention. Empty means every utm_ key is captured.
	Allowlist []string
}

// Location supplies the ambient "current page" URL.
type Location interface {
	// CurrentURL returns the page URL, or false when none is available.
	CurrentURL() (string, bool)
}

// StaticLocation is a Location that always reports the same URL.
// The empty string means no URL is available.
type StaticLocation string

// CurrentURL implements Location.
func (l StaticLocation) CurrentURL() (string, bool) {
	return string(l), l != ""
}

// RequestLocation reconstructs the absolute URL an HTTP request was made to.
type RequestLocation struct {
	Request *http.Request
}

// CurrentURL implements Location. The scheme honors X-Forwarded-Proto.
func (l RequestLocation) CurrentURL() (string, bool) {
	r := l.Request
	if r == nil || r.URL == nil || r.Host == "" {
		return "", false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
	return u.String(), true
}

// Extract returns the UTM parameters in rawURL's query component. Only
// underscore keys are scanned, since that is the wire form; the result is
// converted to opts.Format afterwards. Pairs are split the same way the
// injector splits them, so a malformed escape or a ';' stays in the value.
// When a key repeats, the last value wins. Unparsable input yields an
// empty set.
func Extract(rawURL string, opts Options) utm.Params {
	out := make(utm.Params)

	u, ok := utm.ParseURL(rawURL)
	if !ok {
		return out
	}

	var allowed map[string]bool
	if len(opts.Allowlist) > 0 {
		allowed = make(map[string]bool, len(opts.Allowlist))
		for _, k := range opts.Allowlist {
			allowed[utm.ToUnderscore(strings.TrimSpace(k))] = true
		}
	}

	for _, p := range utm.SplitPairs(u.RawQuery) {
		if !utm.IsUnderscoreKey(p.Key) {
			continue
		}
		if allowed != nil && !allowed[p.Key] {
			continue
		}
		out[p.Key] = p.Value
	}

	if opts.Format == utm.FormatCompact {
		return utm.Convert(out, utm.FormatCompact)
	}
	return out
}

// ExtractCurrent extracts from the ambient location. A nil location, or one
// with no URL, yields an empty set.
func ExtractCurrent(loc Location, opts Options) utm.Params {
	if loc == nil {
		return make(utm.Params)
	}
	raw, ok := loc.CurrentURL()
	if !ok {
		return make(utm.Params)
	}
	return Extract(raw, opts)
}
