package ops

import (
	"github.com/hpungsan/tern/internal/capture"
	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/utm"
)

// CaptureInput contains parameters for the Capture operation.
type CaptureInput struct {
	URL      string           // used when Location is nil
	Location capture.Location // ambient location, e.g. the current request
}

// CaptureOutput contains the result of the Capture operation.
type CaptureOutput struct {
	Enabled bool       `json:"enabled"`
	Params  utm.Params `json:"params"`
	Source  Source     `json:"source"`
	Stored  bool       `json:"stored"`
}

// Capture extracts parameters from the location and persists them when any
// have a value. Otherwise it reports the stored set, then the configured
// defaults. Defaults are never persisted.
func Capture(store *session.Store, cfg *config.Config, input CaptureInput) (*CaptureOutput, error) {
	if !cfg.IsEnabled() {
		return &CaptureOutput{Params: utm.Params{}, Source: SourceNone}, nil
	}

	loc := input.Location
	if loc == nil {
		loc = capture.StaticLocation(input.URL)
	}

	captured := capture.ExtractCurrent(loc, capture.Options{
		Format:    cfg.Format(),
		Allowlist: cfg.CaptureKeys,
	})
	if utm.HasValues(captured) {
		ok := store.Put(captured, session.PutOptions{Slot: cfg.Slot(), Format: cfg.Format()})
		return &CaptureOutput{
			Enabled: true,
			Params:  captured,
			Source:  SourceURL,
			Stored:  ok,
		}, nil
	}

	p, src := stored(store, cfg)
	return &CaptureOutput{Enabled: true, Params: p, Source: src}, nil
}
