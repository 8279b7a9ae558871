// Package inject writes UTM parameters into URLs, removes them, and reads
// them back. Parameters may live in the query or in the fragment; a key is
// never left in both after an injection.
//
// None of the functions fail: input that does not parse as an absolute URL
// is returned unchanged (or yields an empty set).
package inject

import (
	"strings"

	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/utm"
)

// Placement selects where injected parameters are written.
type Placement string

const (
	PlacementQuery    Placement = "query"
	PlacementFragment Placement = "fragment"
)

// ParsePlacement parses a placement name. Empty input yields PlacementQuery.
func ParsePlacement(s string) (Placement, error) {
	switch Placement(strings.ToLower(strings.TrimSpace(s))) {
	case "", PlacementQuery:
		return PlacementQuery, nil
	case PlacementFragment, "hash":
		return PlacementFragment, nil
	}
	return "", errors.NewInvalidConfig("placement", "must be one of: query, fragment")
}

// Options controls Inject.
type Options struct {
	Placement    Placement // default: query
	KeepExisting bool      // existing values in the target location win
}

// Inject returns rawURL with p written into the query or fragment.
//
// Keys are converted to underscore form and only UTM keys are written. When
// p has no non-empty value the URL is returned unchanged. Injected keys are
// removed from the other location (the fragment only if it holds key=value
// data). In the target location each key replaces any existing occurrence,
// unless KeepExisting is set and the key is already present. Empty values
// are written as a bare key.
func Inject(rawURL string, p utm.Params, opts Options) string {
	values := utm.Convert(utm.Filter(p), utm.FormatUnderscore)
	if !utm.HasValues(values) {
		return rawURL
	}

	u, ok := parseURL(rawURL)
	if !ok {
		return rawURL
	}

	injected := func(key string) bool {
		_, ok := values[key]
		return ok
	}

	var target pairList
	if opts.Placement == PlacementFragment {
		if rest, changed := parsePairs(u.query).without(injected); changed {
			u.setQuery(rest.encode())
		}
		target = parsePairs(u.fragment)
	} else {
		if u.fragmentHasPairs() {
			if rest, changed := parsePairs(u.fragment).without(injected); changed {
				u.setFragment(rest.encode())
			}
		}
		target = parsePairs(u.query)
	}

	for _, key := range values.Keys() {
		if opts.KeepExisting && target.has(key) {
			continue
		}
		target, _ = target.without(func(k string) bool { return k == key })
		target = append(target, pair{Key: key, Value: values[key]})
	}

	if opts.Placement == PlacementFragment {
		u.setFragment(target.encode())
	} else {
		u.setQuery(target.encode())
	}
	return u.String()
}

// RemoveInjected deletes keys from both the query and the fragment (the
// fragment only if it holds key=value data). keys may be in either
// convention; when empty, every underscore-convention key is removed.
// The input is returned unchanged when nothing was removed.
func RemoveInjected(rawURL string, keys []string) string {
	u, ok := parseURL(rawURL)
	if !ok {
		return rawURL
	}

	drop := utm.IsUnderscoreKey
	if len(keys) > 0 {
		set := make(map[string]bool, len(keys)*2)
		for _, k := range keys {
			set[k] = true
			set[utm.ToUnderscore(k)] = true
		}
		drop = func(k string) bool { return set[k] }
	}

	changed := false
	if rest, removed := parsePairs(u.query).without(drop); removed {
		u.setQuery(rest.encode())
		changed = true
	}
	if u.fragmentHasPairs() {
		if rest, removed := parsePairs(u.fragment).without(drop); removed {
			u.setFragment(rest.encode())
			changed = true
		}
	}

	if !changed {
		return rawURL
	}
	return u.String()
}

// ExtractInjected reads underscore-convention keys from the query and the
// fragment. Fragment values override query values for the same key.
func ExtractInjected(rawURL string) utm.Params {
	out := make(utm.Params)
	u, ok := parseURL(rawURL)
	if !ok {
		return out
	}
	parsePairs(u.query).underscoreValues(out)
	if u.fragmentHasPairs() {
		parsePairs(u.fragment).underscoreValues(out)
	}
	return out
}
