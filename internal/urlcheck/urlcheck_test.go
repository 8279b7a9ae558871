package urlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tern/internal/errors"
)

func TestValidate(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		code Code
		url  string
	}{
		{name: "https", in: "https://example.com/a?b=c", url: "https://example.com/a?b=c"},
		{name: "http kept", in: "http://example.com", url: "http://example.com"},
		{name: "scheme added", in: "example.com/path", url: "https://example.com/path"},
		{name: "protocol relative", in: "//example.com/x", url: "https://example.com/x"},
		{name: "host with port", in: "localhost:8080/app", url: "https://localhost:8080/app"},
		{name: "ip address", in: "http://127.0.0.1:3000", url: "http://127.0.0.1:3000"},
		{name: "surrounding space", in: "  example.org  ", url: "https://example.org"},
		{name: "punycode tld", in: "https://example.xn--p1ai", url: "https://example.xn--p1ai"},
		{name: "unicode host", in: "bücher.de/katalog?x=1", url: "https://xn--bcher-kva.de/katalog?x=1"},
		{name: "unicode host with port", in: "http://bücher.de:8080", url: "http://xn--bcher-kva.de:8080"},
		{name: "empty", in: "   ", code: CodeEmptyInput},
		{name: "ftp", in: "ftp://example.com", code: CodeInvalidProtocol},
		{name: "javascript", in: "javascript:alert(1)", code: CodeInvalidProtocol},
		{name: "mailto", in: "mailto:a@example.com", code: CodeInvalidProtocol},
		{name: "single label", in: "https://intranet", code: CodeInvalidDomain},
		{name: "numeric tld", in: "https://example.123", code: CodeInvalidDomain},
		{name: "bad label", in: "https://-bad.example.com", code: CodeInvalidDomain},
		{name: "no host", in: "https:///path", code: CodeInvalidDomain},
		{name: "bad unicode label", in: "https://-bü.de", code: CodeInvalidDomain},
		{name: "unparseable", in: "https://exa mple.com/%zz", code: CodeMalformedURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Validate(tt.in)
			if tt.code == "" {
				assert.True(t, r.Valid, "result: %+v", r)
				assert.Equal(t, tt.url, r.URL)
				return
			}
			assert.False(t, r.Valid)
			assert.Equal(t, tt.code, r.Code)
			assert.NotEmpty(t, r.Message)
			assert.Empty(t, r.URL)
		})
	}
}

func TestValidator_DefaultProtocol(t *testing.T) {
	var zero Validator
	assert.Equal(t, "https", zero.DefaultProtocol())

	for _, p := range []string{"http", "HTTP:", "http://"} {
		v, err := NewValidator(p)
		require.NoError(t, err, p)
		assert.Equal(t, "http", v.DefaultProtocol())
		assert.Equal(t, "http://example.com", v.Validate("example.com").URL)
	}

	_, err := NewValidator("ftp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	v, err := NewValidator("https")
	require.NoError(t, err)
	require.Error(t, v.SetDefaultProtocol("gopher"))
	assert.Equal(t, "https", v.DefaultProtocol(), "failed set leaves protocol unchanged")
}

func TestNormalize(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)

	got, err := v.Normalize("example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)

	_, err = v.Normalize("ftp://example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidURL))

	var ternErr *errors.TernError
	require.ErrorAs(t, err, &ternErr)
	assert.Equal(t, "ftp://example.com", ternErr.Details["url"])
	assert.Equal(t, string(CodeInvalidProtocol), ternErr.Details["reason"])
}
