// Package ops binds the parameter-set lifecycle (capture, read, clear,
// append) to a session store and resolved configuration. The CLI, MCP and
// web surfaces all call through here.
package ops

import (
	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/utm"
)

// Source says where a returned parameter set came from.
type Source string

const (
	SourceURL     Source = "url"
	SourceSession Source = "session"
	SourceDefault Source = "default"
	SourceNone    Source = "none"
)

// stored returns the current session set, falling back to the configured
// defaults. The returned set is in the configured key format and never nil.
func stored(store *session.Store, cfg *config.Config) (utm.Params, Source) {
	p, ok := store.Get(session.GetOptions{Slot: cfg.Slot(), Format: cfg.Format()})
	if ok && len(p) > 0 {
		return p, SourceSession
	}
	if len(cfg.DefaultParams) > 0 {
		return utm.Convert(utm.Params(cfg.DefaultParams), cfg.Format()), SourceDefault
	}
	return utm.Params{}, SourceNone
}
