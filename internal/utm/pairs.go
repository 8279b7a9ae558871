package utm

import "strings"

// Pair is one key=value entry of a query string or fragment. Raw holds the
// entry's original text.
type Pair struct {
	Key   string
	Value string
	Raw   string
}

// SplitPairs splits s on '&'. Entries without '=' are bare keys with an
// empty value, and empty segments are dropped. ';' is ordinary data.
// Keys and values are decoded with Unescape.
func SplitPairs(s string) []Pair {
	if s == "" {
		return nil
	}
	segments := strings.Split(s, "&")
	out := make([]Pair, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		out = append(out, Pair{Key: Unescape(k), Value: Unescape(v), Raw: seg})
	}
	return out
}

// Unescape decodes form-encoded text leniently: '+' is a space and each
// valid %XX escape is decoded. A '%' not followed by two hex digits is kept
// as is, so "50%off" stays "50%off".
func Unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}
