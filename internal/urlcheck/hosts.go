package urlcheck

import (
	"net/url"
	"strings"
)

// HostAllowed reports whether the host of rawURL is origin's host or
// matches an entry of allow. An entry is a host name, or "*.example.com"
// for any subdomain of example.com. Case and port are ignored.
func HostAllowed(rawURL, origin string, allow []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := hostname(u.Host)
	if host == "" {
		return false
	}
	if o := hostname(origin); o != "" && host == o {
		return true
	}
	for _, entry := range allow {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if hostname(entry) == host {
			return true
		}
	}
	return false
}

// ValidHostPattern reports whether s can be used as a HostAllowed entry.
func ValidHostPattern(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "*.")
	if s == "" || strings.ContainsAny(s, "/?#@ *") {
		return false
	}
	return hostname(s) != ""
}

// hostname lowercases hostport and drops its port and trailing dot.
func hostname(hostport string) string {
	h := (&url.URL{Host: strings.TrimSpace(hostport)}).Hostname()
	return strings.TrimSuffix(strings.ToLower(h), ".")
}
