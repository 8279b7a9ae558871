package utm

import (
	"net/url"
	"strings"
)

// ParseURL parses raw as an absolute URL. It reports false for anything a
// browser URL constructor would reject without a base: relative references,
// and http(s) URLs without a host.
func ParseURL(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return nil, false
		}
	}
	return u, true
}
