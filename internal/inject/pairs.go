package inject

import (
	"net/url"
	"strings"

	"github.com/hpungsan/tern/internal/utm"
)

// pair is a query or fragment entry. Raw is empty for entries added by the
// injector; other entries are written back exactly as read.
type pair = utm.Pair

type pairList []pair

func parsePairs(s string) pairList {
	return pairList(utm.SplitPairs(s))
}

func (l pairList) has(key string) bool {
	for _, p := range l {
		if p.Key == key {
			return true
		}
	}
	return false
}

// without drops every entry for which drop returns true.
func (l pairList) without(drop func(key string) bool) (pairList, bool) {
	out := make(pairList, 0, len(l))
	for _, p := range l {
		if drop(p.Key) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out) != len(l)
}

// encode joins the entries back into a string. New entries with an empty
// value are written as a bare key.
func (l pairList) encode() string {
	parts := make([]string, 0, len(l))
	for _, p := range l {
		switch {
		case p.Raw != "":
			parts = append(parts, p.Raw)
		case p.Value == "":
			parts = append(parts, url.QueryEscape(p.Key))
		default:
			parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
		}
	}
	return strings.Join(parts, "&")
}

// underscoreValues collects underscore-convention entries; later entries win.
func (l pairList) underscoreValues(into utm.Params) {
	for _, p := range l {
		if utm.IsUnderscoreKey(p.Key) {
			into[p.Key] = p.Value
		}
	}
}

// splitURL holds a URL cut into its prefix (everything before '?'), query
// and fragment, as raw text.
type splitURL struct {
	prefix      string
	query       string
	hasQuery    bool
	fragment    string
	hasFragment bool
	emptyPath   bool
}

func parseURL(raw string) (*splitURL, bool) {
	raw = strings.TrimSpace(raw)
	u, ok := utm.ParseURL(raw)
	if !ok {
		return nil, false
	}

	s := &splitURL{}
	rest, frag, hasFrag := strings.Cut(raw, "#")
	s.fragment, s.hasFragment = frag, hasFrag
	s.prefix, s.query, s.hasQuery = strings.Cut(rest, "?")

	switch u.Scheme {
	case "http", "https":
		s.emptyPath = u.Opaque == "" && u.Path == "" && u.RawPath == ""
	}
	return s, true
}

// fragmentHasPairs reports whether the fragment looks like key=value data.
// An opaque fragment such as "#section" does not.
func (s *splitURL) fragmentHasPairs() bool {
	return strings.Contains(s.fragment, "=")
}

func (s *splitURL) setQuery(q string) {
	s.query, s.hasQuery = q, q != ""
}

func (s *splitURL) setFragment(f string) {
	s.fragment, s.hasFragment = f, f != ""
}

// String reassembles the URL. An empty http(s) path is written as "/".
func (s *splitURL) String() string {
	var b strings.Builder
	b.WriteString(s.prefix)
	if s.emptyPath {
		b.WriteByte('/')
	}
	if s.hasQuery {
		b.WriteByte('?')
		b.WriteString(s.query)
	}
	if s.hasFragment {
		b.WriteByte('#')
		b.WriteString(s.fragment)
	}
	return b.String()
}
