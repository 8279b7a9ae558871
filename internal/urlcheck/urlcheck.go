// Package urlcheck validates and normalizes the base URLs that parameters
// are appended to.
package urlcheck

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/hpungsan/tern/internal/errors"
)

// Code is a stable identifier for a validation failure.
type Code string

const (
	CodeEmptyInput      Code = "EMPTY_INPUT"
	CodeInvalidProtocol Code = "INVALID_PROTOCOL"
	CodeInvalidDomain   Code = "INVALID_DOMAIN"
	CodeMalformedURL    Code = "MALFORMED_URL"
)

// Result is the outcome of Validate. URL holds the normalized form when Valid.
type Result struct {
	Valid   bool   `json:"valid"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

// AllowedProtocols are the schemes a link may use.
var AllowedProtocols = []string{"https", "http"}

var (
	schemeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
	labelRegex  = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	tldRegex    = regexp.MustCompile(`^(?:[a-zA-Z]{2,63}|xn--[a-zA-Z0-9-]{1,59})$`)
)

// Validator validates URLs, prepending DefaultProtocol when a URL has none.
// The zero value uses "https".
type Validator struct {
	protocol string
}

// NewValidator creates a Validator with the given default protocol.
func NewValidator(protocol string) (*Validator, error) {
	v := &Validator{}
	if protocol == "" {
		return v, nil
	}
	if err := v.SetDefaultProtocol(protocol); err != nil {
		return nil, err
	}
	return v, nil
}

// DefaultProtocol returns the protocol prepended to scheme-less input.
func (v *Validator) DefaultProtocol() string {
	if v.protocol == "" {
		return "https"
	}
	return v.protocol
}

// SetDefaultProtocol sets the protocol prepended to scheme-less input.
// "https", "https:" and "https://" are equivalent. Anything outside
// AllowedProtocols is a programming error and is returned as INVALID_CONFIG.
func (v *Validator) SetDefaultProtocol(protocol string) error {
	p := strings.ToLower(strings.TrimSpace(protocol))
	p = strings.TrimSuffix(strings.TrimSuffix(p, "//"), ":")
	if !isAllowed(p) {
		return errors.NewInvalidConfig("default_protocol", "must be one of: "+strings.Join(AllowedProtocols, ", "))
	}
	v.protocol = p
	return nil
}

func isAllowed(protocol string) bool {
	for _, p := range AllowedProtocols {
		if protocol == p {
			return true
		}
	}
	return false
}

// Validate checks raw and returns a Result; it never fails.
func (v *Validator) Validate(raw string) Result {
	s := strings.TrimSpace(raw)
	if s == "" {
		return invalid(CodeEmptyInput, "url is empty")
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = v.DefaultProtocol() + ":" + s
	case strings.Contains(s, "://"):
	case hasNonPortScheme(s):
	default:
		s = v.DefaultProtocol() + "://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return invalid(CodeMalformedURL, "url could not be parsed")
	}
	if !isAllowed(strings.ToLower(u.Scheme)) {
		return invalid(CodeInvalidProtocol, "protocol must be one of: "+strings.Join(AllowedProtocols, ", "))
	}
	if u.Opaque != "" {
		return invalid(CodeMalformedURL, "url has no authority")
	}
	host := u.Hostname()
	ascii, ok := asciiHost(host)
	if !ok {
		return invalid(CodeInvalidDomain, "domain is not valid")
	}
	if ascii != host {
		u.Host = strings.Replace(u.Host, host, ascii, 1)
	}

	return Result{Valid: true, URL: u.String()}
}

// Normalize returns the normalized URL, or an INVALID_URL error carrying
// the failure code.
func (v *Validator) Normalize(raw string) (string, error) {
	r := v.Validate(raw)
	if !r.Valid {
		return "", errors.NewInvalidURL(raw, string(r.Code), r.Message)
	}
	return r.URL, nil
}

func invalid(code Code, msg string) Result {
	return Result{Code: code, Message: msg}
}

// hasNonPortScheme reports whether s starts with "scheme:" where what
// follows is not a port number (so "localhost:8080" has no scheme).
func hasNonPortScheme(s string) bool {
	m := schemeRegex.FindString(s)
	if m == "" {
		return false
	}
	rest := s[len(m):]
	return rest == "" || rest[0] < '0' || rest[0] > '9'
}

// asciiHost checks host and returns it in ASCII form. Internationalized
// names are converted to punycode; ASCII names are returned as given.
func asciiHost(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	if strings.EqualFold(host, "localhost") || net.ParseIP(host) != nil {
		return host, true
	}

	ascii := host
	if !isASCII(host) {
		var err error
		if ascii, err = idna.Lookup.ToASCII(host); err != nil {
			return "", false
		}
	}

	labels := strings.Split(strings.TrimSuffix(ascii, "."), ".")
	if len(labels) < 2 {
		return "", false
	}
	for _, l := range labels {
		if !labelRegex.MatchString(l) {
			return "", false
		}
	}
	if !tldRegex.MatchString(labels[len(labels)-1]) {
		return "", false
	}
	return ascii, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
