package ops

import (
	"github.com/hpungsan/tern/internal/capture"
	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/inject"
	"github.com/hpungsan/tern/internal/urlcheck"
	"github.com/hpungsan/tern/internal/utm"
)

// StripInput contains parameters for the Strip operation.
type StripInput struct {
	URL  string
	Keys []string // either convention; all utm_ keys when empty
}

// StripOutput contains the result of the Strip operation.
type StripOutput struct {
	URL     string `json:"url"`
	Changed bool   `json:"changed"`
}

// Strip removes parameters from the query and the fragment.
func Strip(input StripInput) (*StripOutput, error) {
	if _, ok := utm.ParseURL(input.URL); !ok {
		return nil, errors.NewInvalidURL(input.URL, string(urlcheck.CodeMalformedURL), "url must be absolute")
	}
	out := inject.RemoveInjected(input.URL, input.Keys)
	return &StripOutput{URL: out, Changed: out != input.URL}, nil
}

// InspectOutput contains the result of the Inspect operation.
type InspectOutput struct {
	URL        string          `json:"url"`
	Captured   utm.Params      `json:"captured"`
	Injected   utm.Params      `json:"injected"`
	Validation urlcheck.Result `json:"validation"`
}

// Inspect reports what Capture would read from the query, what
// ExtractInjected reads from the query and fragment, and whether the URL
// passes validation. Nothing is stored.
func Inspect(cfg *config.Config, rawURL string) (*InspectOutput, error) {
	validator, err := urlcheck.NewValidator(cfg.DefaultProtocol)
	if err != nil {
		return nil, err
	}
	return &InspectOutput{
		URL:        rawURL,
		Captured:   capture.Extract(rawURL, capture.Options{Format: cfg.Format(), Allowlist: cfg.CaptureKeys}),
		Injected:   inject.ExtractInjected(rawURL),
		Validation: validator.Validate(rawURL),
	}, nil
}

// Validate checks rawURL with the configured default protocol.
func Validate(cfg *config.Config, rawURL string) (*urlcheck.Result, error) {
	validator, err := urlcheck.NewValidator(cfg.DefaultProtocol)
	if err != nil {
		return nil, err
	}
	r := validator.Validate(rawURL)
	return &r, nil
}
