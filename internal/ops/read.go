package ops

import (
	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/utm"
)

// ReadOutput contains the result of the Read operation.
type ReadOutput struct {
	Params utm.Params `json:"params"`
	Source Source     `json:"source"`
	Format utm.Format `json:"format"`
}

// Read returns the stored set in the configured format, falling back to the
// configured defaults.
func Read(store *session.Store, cfg *config.Config) (*ReadOutput, error) {
	p, src := stored(store, cfg)
	return &ReadOutput{Params: p, Source: src, Format: cfg.Format()}, nil
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Cleared bool   `json:"cleared"`
	Slot    string `json:"slot"`
}

// Clear removes the stored set.
func Clear(store *session.Store, cfg *config.Config) (*ClearOutput, error) {
	slot := cfg.Slot()
	return &ClearOutput{Cleared: store.Remove(slot), Slot: slot}, nil
}
