package ops

import (
	"strings"

	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/inject"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/urlcheck"
	"github.com/hpungsan/tern/internal/utm"
)

// AppendInput contains parameters for the Append operation.
type AppendInput struct {
	URL          string
	Platform     string            // optional share_overrides entry
	Params       map[string]string // caller params, highest precedence
	Placement    string            // optional; config default when empty
	KeepExisting bool
}

// AppendOutput contains the result of the Append operation.
type AppendOutput struct {
	URL       string           `json:"url"`
	Appended  bool             `json:"appended"`
	Params    utm.Params       `json:"params"`
	Placement inject.Placement `json:"placement"`
	Platform  string           `json:"platform,omitempty"`
}

// Append normalizes the URL and writes the effective parameter set into it.
//
// Precedence, lowest first: the session set, share_overrides["default"],
// share_overrides[platform], caller params. Excluded keys are dropped in
// either convention. When tracking is disabled the normalized URL is
// returned without parameters.
func Append(store *session.Store, cfg *config.Config, input AppendInput) (*AppendOutput, error) {
	validator, err := urlcheck.NewValidator(cfg.DefaultProtocol)
	if err != nil {
		return nil, err
	}
	base, err := validator.Normalize(input.URL)
	if err != nil {
		return nil, err
	}

	placement := cfg.Placement()
	if strings.TrimSpace(input.Placement) != "" {
		placement, err = inject.ParsePlacement(input.Placement)
		if err != nil {
			return nil, errors.NewInvalidRequest("placement must be one of: query, fragment")
		}
	}

	if !utm.IsValid(input.Params, "") {
		return nil, errors.NewInvalidRequest("params must use utm_ or utm-prefixed keys")
	}

	platform := strings.ToLower(strings.TrimSpace(input.Platform))
	out := &AppendOutput{
		URL:       base,
		Params:    utm.Params{},
		Placement: placement,
		Platform:  platform,
	}
	if !cfg.IsEnabled() {
		return out, nil
	}

	sessionParams, _ := store.Get(session.GetOptions{Slot: cfg.Slot()})
	sets := []utm.Params{sessionParams, utm.Params(cfg.Overrides(config.DefaultOverrideKey))}
	if platform != "" && platform != config.DefaultOverrideKey {
		sets = append(sets, utm.Params(cfg.Overrides(platform)))
	}
	sets = append(sets, utm.Params(input.Params))

	effective := utm.Without(utm.Merge(sets...), cfg.ExcludeKeys)

	out.URL = inject.Inject(base, effective, inject.Options{
		Placement:    placement,
		KeepExisting: input.KeepExisting,
	})
	out.Appended = utm.HasValues(effective)
	out.Params = effective
	return out, nil
}
