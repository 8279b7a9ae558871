// Package utm holds the UTM parameter model: the two key conventions,
// conversion between them, and structural validation of parameter sets.
//
// Underscore convention (utm_source, utm_team_id) is the wire form used in
// URLs and storage. Compact convention (utmSource, utmTeamId) is an
// in-memory alternative. Supported custom suffixes are lowercase words joined
// by single underscores; digits and acronyms (utmABTest) do not round-trip.
package utm

import (
	"strings"

	"github.com/hpungsan/tern/internal/errors"
)

const (
	underscorePrefix = "utm_"
	compactPrefix    = "utm"
)

// Format identifies a key convention. The zero value means unspecified.
type Format string

const (
	FormatUnderscore Format = "underscore"
	FormatCompact    Format = "compact"
)

// StandardKeys are the six semantic UTM keys, in underscore form.
var StandardKeys = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"utm_id",
}

// ParseFormat parses a format name. Empty input yields the zero Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case FormatUnderscore, "snake", "snake_case":
		return FormatUnderscore, nil
	case FormatCompact, "camel", "camelcase":
		return FormatCompact, nil
	}
	return "", errors.NewInvalidConfig("key_format", "must be one of: underscore, compact")
}

// IsUnderscoreKey reports whether key is in underscore convention (utm_ prefix).
func IsUnderscoreKey(key string) bool {
	return strings.HasPrefix(key, underscorePrefix)
}

// IsCompactKey reports whether key is in compact convention: "utm" followed
// immediately by an uppercase ASCII letter.
func IsCompactKey(key string) bool {
	if len(key) <= len(compactPrefix) || !strings.HasPrefix(key, compactPrefix) {
		return false
	}
	c := key[len(compactPrefix)]
	return c >= 'A' && c <= 'Z'
}

// IsUTMKey reports whether key is a UTM key in either convention.
// A bare "utm" is neither.
func IsUTMKey(key string) bool {
	return IsUnderscoreKey(key) || IsCompactKey(key)
}

// IsStandardKey reports whether key names one of the six standard attributes,
// in either convention.
func IsStandardKey(key string) bool {
	k := ToUnderscore(key)
	for _, s := range StandardKeys {
		if k == s {
			return true
		}
	}
	return false
}

// ToUnderscore converts a compact key to underscore form (utmTeamId -> utm_team_id).
// Keys that are already underscore form or not UTM keys are returned unchanged.
func ToUnderscore(key string) string {
	if !IsCompactKey(key) {
		return key
	}
	suffix := key[len(compactPrefix):]

	var b strings.Builder
	b.Grow(len(key) + 4)
	b.WriteString(underscorePrefix)
	for i := 0; i < len(suffix); i++ {
		c := suffix[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ToCompact converts an underscore key to compact form (utm_team_id -> utmTeamId).
// Keys that are already compact or not UTM keys are returned unchanged, as is
// "utm_" with no suffix.
func ToCompact(key string) string {
	if !IsUnderscoreKey(key) {
		return key
	}
	suffix := key[len(underscorePrefix):]
	if suffix == "" {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))
	b.WriteString(compactPrefix)
	upper := true
	for i := 0; i < len(suffix); i++ {
		c := suffix[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		b.WriteByte(c)
	}
	return b.String()
}

// ConvertKey converts key to the given format. An unspecified format is identity.
func ConvertKey(key string, format Format) string {
	switch format {
	case FormatUnderscore:
		return ToUnderscore(key)
	case FormatCompact:
		return ToCompact(key)
	}
	return key
}

// MatchesFormat reports whether key satisfies the predicate for format.
// An unspecified format accepts any UTM key.
func MatchesFormat(key string, format Format) bool {
	switch format {
	case FormatUnderscore:
		return IsUnderscoreKey(key)
	case FormatCompact:
		return IsCompactKey(key)
	}
	return IsUTMKey(key)
}
