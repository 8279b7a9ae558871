package utm

import (
	"sort"
)

// Params maps UTM keys to values. A missing key is an absent value; the
// empty string is a present, empty value.
type Params map[string]string

// Keys returns the keys of p in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of p. A nil p yields an empty, non-nil set.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// HasValues reports whether at least one entry has a non-empty value.
func HasValues(p Params) bool {
	for _, v := range p {
		if v != "" {
			return true
		}
	}
	return false
}

// DetectFormat returns the convention of the first recognizable key, scanning
// keys in sorted order. Sets with no recognizable key default to underscore.
func DetectFormat(p Params) Format {
	for _, k := range p.Keys() {
		if IsUnderscoreKey(k) {
			return FormatUnderscore
		}
		if IsCompactKey(k) {
			return FormatCompact
		}
	}
	return FormatUnderscore
}

// Convert maps every key of p to target. Later keys win when two keys
// collapse onto the same converted key (sorted order).
func Convert(p Params, target Format) Params {
	out := make(Params, len(p))
	for _, k := range p.Keys() {
		out[ConvertKey(k, target)] = p[k]
	}
	return out
}

// Filter returns the entries of p whose keys are UTM keys.
func Filter(p Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		if IsUTMKey(k) {
			out[k] = v
		}
	}
	return out
}

// Merge overlays sets left to right; later sets win per underscore key.
// The result is in underscore form.
func Merge(sets ...Params) Params {
	out := make(Params)
	for _, s := range sets {
		for k, v := range Convert(s, FormatUnderscore) {
			out[k] = v
		}
	}
	return out
}

// Without returns p minus every key that matches one of keys, comparing in
// underscore form so either convention may be given.
func Without(p Params, keys []string) Params {
	if len(keys) == 0 {
		return p.Clone()
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[ToUnderscore(k)] = true
	}
	out := make(Params, len(p))
	for k, v := range p {
		if !drop[ToUnderscore(k)] {
			out[k] = v
		}
	}
	return out
}

// IsValid performs structural validation of a decoded value. value must be
// a JSON object (map[string]any, map[string]string or Params) whose values
// are strings or nil and whose keys satisfy MatchesFormat(key, format).
// The empty object is valid.
func IsValid(value any, format Format) bool {
	switch m := value.(type) {
	case Params:
		return keysMatch(m, format)
	case map[string]string:
		return keysMatch(m, format)
	case map[string]any:
		for k, v := range m {
			if !MatchesFormat(k, format) {
				return false
			}
			switch v.(type) {
			case nil, string:
			default:
				return false
			}
		}
		return true
	}
	return false
}

func keysMatch(m map[string]string, format Format) bool {
	for k := range m {
		if !MatchesFormat(k, format) {
			return false
		}
	}
	return true
}

// FromMap builds Params from a decoded JSON object, dropping nil values.
// Callers are expected to have checked IsValid first.
func FromMap(m map[string]any) Params {
	out := make(Params, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
