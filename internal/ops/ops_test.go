package ops

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/inject"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/urlcheck"
	"github.com/hpungsan/tern/internal/utm"
)

func newTestStore() *session.Store {
	return session.NewStore(session.NewMemoryMedium(), zap.NewNop())
}

func boolPtr(b bool) *bool { return &b }

func TestCapture_FromURL(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()

	out, err := Capture(store, cfg, CaptureInput{
		URL: "https://example.com/?utm_source=google&utm_medium=cpc&ref=homepage",
	})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	want := utm.Params{"utm_source": "google", "utm_medium": "cpc"}
	if !reflect.DeepEqual(out.Params, want) {
		t.Errorf("Params = %v, want %v", out.Params, want)
	}
	if out.Source != SourceURL || !out.Stored || !out.Enabled {
		t.Errorf("Source = %q, Stored = %v, Enabled = %v", out.Source, out.Stored, out.Enabled)
	}

	read, err := Read(store, cfg)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if read.Source != SourceSession || !reflect.DeepEqual(read.Params, want) {
		t.Errorf("Read() = %v from %q, want %v from session", read.Params, read.Source, want)
	}
}

func TestCapture_CompactFormat(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	cfg.KeyFormat = "compact"

	out, err := Capture(store, cfg, CaptureInput{URL: "https://example.com/?utm_source=x&utm_team_id=7"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	want := utm.Params{"utmSource": "x", "utmTeamId": "7"}
	if !reflect.DeepEqual(out.Params, want) {
		t.Errorf("Params = %v, want %v", out.Params, want)
	}

	raw, ok := store.GetRaw(cfg.Slot())
	if !ok || raw != `{"utmSource":"x","utmTeamId":"7"}` {
		t.Errorf("stored = %q, %v", raw, ok)
	}
}

func TestCapture_Fallbacks(t *testing.T) {
	t.Run("session", func(t *testing.T) {
		store := newTestStore()
		cfg := config.DefaultConfig()
		store.Put(utm.Params{"utm_source": "earlier"}, session.PutOptions{})

		out, err := Capture(store, cfg, CaptureInput{URL: "https://example.com/?page=2"})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if out.Source != SourceSession || out.Params["utm_source"] != "earlier" {
			t.Errorf("Capture() = %v from %q", out.Params, out.Source)
		}
	})

	t.Run("empty values do not overwrite", func(t *testing.T) {
		store := newTestStore()
		cfg := config.DefaultConfig()
		store.Put(utm.Params{"utm_source": "earlier"}, session.PutOptions{})

		out, err := Capture(store, cfg, CaptureInput{URL: "https://example.com/?utm_source="})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if out.Source != SourceSession || out.Params["utm_source"] != "earlier" {
			t.Errorf("Capture() = %v from %q", out.Params, out.Source)
		}
	})

	t.Run("defaults are not persisted", func(t *testing.T) {
		store := newTestStore()
		cfg := config.DefaultConfig()
		cfg.DefaultParams = map[string]string{"utm_source": "direct"}

		out, err := Capture(store, cfg, CaptureInput{URL: "https://example.com/"})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if out.Source != SourceDefault || out.Params["utm_source"] != "direct" || out.Stored {
			t.Errorf("Capture() = %+v", out)
		}
		if store.Exists(cfg.Slot()) {
			t.Error("defaults were written to the session")
		}
	})

	t.Run("none", func(t *testing.T) {
		out, err := Capture(newTestStore(), config.DefaultConfig(), CaptureInput{URL: "not a url"})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if out.Source != SourceNone || out.Params == nil || len(out.Params) != 0 {
			t.Errorf("Capture() = %+v", out)
		}
	})
}

func TestCapture_Disabled(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	cfg.Enabled = boolPtr(false)

	out, err := Capture(store, cfg, CaptureInput{URL: "https://example.com/?utm_source=x"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if out.Enabled || out.Stored || len(out.Params) != 0 {
		t.Errorf("Capture() = %+v, want no-op", out)
	}
	if store.Exists(cfg.Slot()) {
		t.Error("disabled capture wrote to the session")
	}
}

func TestCapture_Allowlist(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	cfg.CaptureKeys = []string{"utmSource"}

	out, err := Capture(store, cfg, CaptureInput{URL: "https://example.com/?utm_source=a&utm_medium=b"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !reflect.DeepEqual(out.Params, utm.Params{"utm_source": "a"}) {
		t.Errorf("Params = %v", out.Params)
	}
}

func TestClear(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	store.Put(utm.Params{"utm_source": "x"}, session.PutOptions{})

	out, err := Clear(store, cfg)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if !out.Cleared || out.Slot != "utm_parameters" {
		t.Errorf("Clear() = %+v", out)
	}

	read, _ := Read(store, cfg)
	if read.Source != SourceNone {
		t.Errorf("Read() after Clear source = %q", read.Source)
	}
}

func TestAppend_Precedence(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	cfg.ShareOverrides = map[string]map[string]string{
		"default":  {"utm_medium": "social"},
		"linkedin": {"utmSource": "linkedin"},
		"x":        {"utm_source": "x"},
	}
	cfg.ExcludeKeys = []string{"utmTerm"}
	store.Put(utm.Params{
		"utm_source":   "newsletter",
		"utm_medium":   "email",
		"utm_campaign": "spring",
		"utm_term":     "shoes",
	}, session.PutOptions{})

	out, err := Append(store, cfg, AppendInput{
		URL:      "example.com/blog",
		Platform: "LinkedIn",
		Params:   map[string]string{"utm_campaign": "launch"},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	want := "https://example.com/blog?utm_campaign=launch&utm_medium=social&utm_source=linkedin"
	if out.URL != want {
		t.Errorf("URL = %q, want %q", out.URL, want)
	}
	if !out.Appended || out.Platform != "linkedin" || out.Placement != inject.PlacementQuery {
		t.Errorf("Append() = %+v", out)
	}
	if _, ok := out.Params["utm_term"]; ok {
		t.Error("excluded key utm_term was appended")
	}
}

func TestAppend_MixedCaseOverrideKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ShareOverrides = map[string]map[string]string{
		"Default":  {"utm_medium": "social"},
		"LinkedIn": {"utm_source": "linkedin"},
	}

	for _, platform := range []string{"LinkedIn", "linkedin", " LINKEDIN "} {
		out, err := Append(newTestStore(), cfg, AppendInput{
			URL:      "https://example.com/",
			Platform: platform,
		})
		if err != nil {
			t.Fatalf("Append(%q) error = %v", platform, err)
		}
		want := "https://example.com/?utm_medium=social&utm_source=linkedin"
		if out.URL != want {
			t.Errorf("Append(%q) URL = %q, want %q", platform, out.URL, want)
		}
	}
}

func TestAppend_FragmentPlacement(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	store.Put(utm.Params{"utm_source": "fragment"}, session.PutOptions{})

	out, err := Append(store, cfg, AppendInput{
		URL:       "https://example.com/?utm_source=query&page=2",
		Placement: "fragment",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	want := "https://example.com/?page=2#utm_source=fragment"
	if out.URL != want {
		t.Errorf("URL = %q, want %q", out.URL, want)
	}
}

func TestAppend_KeepExisting(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	store.Put(utm.Params{"utm_source": "session", "utm_medium": "email"}, session.PutOptions{})

	out, err := Append(store, cfg, AppendInput{
		URL:          "https://example.com/?utm_source=original",
		KeepExisting: true,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	want := "https://example.com/?utm_source=original&utm_medium=email"
	if out.URL != want {
		t.Errorf("URL = %q, want %q", out.URL, want)
	}
}

func TestAppend_NothingToAppend(t *testing.T) {
	out, err := Append(newTestStore(), config.DefaultConfig(), AppendInput{URL: "https://example.com/docs"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if out.Appended || out.URL != "https://example.com/docs" {
		t.Errorf("Append() = %+v", out)
	}
}

func TestAppend_Disabled(t *testing.T) {
	store := newTestStore()
	cfg := config.DefaultConfig()
	cfg.Enabled = boolPtr(false)
	store.Put(utm.Params{"utm_source": "x"}, session.PutOptions{})

	out, err := Append(store, cfg, AppendInput{URL: "example.com"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if out.Appended || out.URL != "https://example.com" {
		t.Errorf("Append() = %+v", out)
	}
}

func TestAppend_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input AppendInput
		code  errors.ErrorCode
	}{
		{name: "empty url", input: AppendInput{URL: ""}, code: errors.ErrInvalidURL},
		{name: "bad protocol", input: AppendInput{URL: "ftp://example.com"}, code: errors.ErrInvalidURL},
		{name: "bad domain", input: AppendInput{URL: "https://intranet"}, code: errors.ErrInvalidURL},
		{name: "bad placement", input: AppendInput{URL: "example.com", Placement: "body"}, code: errors.ErrInvalidRequest},
		{
			name:  "non utm params",
			input: AppendInput{URL: "example.com", Params: map[string]string{"ref": "x"}},
			code:  errors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Append(newTestStore(), config.DefaultConfig(), tt.input)
			if !errors.Is(err, tt.code) {
				t.Errorf("Append() err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestAppend_InvalidURLReason(t *testing.T) {
	_, err := Append(newTestStore(), config.DefaultConfig(), AppendInput{URL: "mailto:team@example.com"})
	tErr, ok := err.(*errors.TernError)
	if !ok {
		t.Fatalf("Append() err = %v, want *TernError", err)
	}
	if tErr.Details["reason"] != string(urlcheck.CodeInvalidProtocol) {
		t.Errorf("reason = %v, want %s", tErr.Details["reason"], urlcheck.CodeInvalidProtocol)
	}
}

func TestStrip(t *testing.T) {
	out, err := Strip(StripInput{URL: "https://example.com/?utm_source=a&page=2#utm_medium=b"})
	if err != nil {
		t.Fatalf("Strip() error = %v", err)
	}
	if out.URL != "https://example.com/?page=2" || !out.Changed {
		t.Errorf("Strip() = %+v", out)
	}

	out, err = Strip(StripInput{URL: "https://example.com/?utm_source=a&utm_medium=b", Keys: []string{"utmMedium"}})
	if err != nil {
		t.Fatalf("Strip() error = %v", err)
	}
	if out.URL != "https://example.com/?utm_source=a" {
		t.Errorf("Strip(keys) = %q", out.URL)
	}

	if _, err := Strip(StripInput{URL: "example.com"}); !errors.Is(err, errors.ErrInvalidURL) {
		t.Errorf("Strip(relative) err = %v, want INVALID_URL", err)
	}
}

func TestInspect(t *testing.T) {
	out, err := Inspect(config.DefaultConfig(), "https://example.com/?utm_source=q&utmMedium=c#utm_campaign=f")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !reflect.DeepEqual(out.Captured, utm.Params{"utm_source": "q"}) {
		t.Errorf("Captured = %v", out.Captured)
	}
	if !reflect.DeepEqual(out.Injected, utm.Params{"utm_source": "q", "utm_campaign": "f"}) {
		t.Errorf("Injected = %v", out.Injected)
	}
	if !out.Validation.Valid {
		t.Errorf("Validation = %+v", out.Validation)
	}
}

func TestValidate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DefaultProtocol = "http"

	r, err := Validate(cfg, "example.com")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !r.Valid || r.URL != "http://example.com" {
		t.Errorf("Validate() = %+v", r)
	}

	r, _ = Validate(cfg, "javascript:alert(1)")
	if r.Valid || r.Code != urlcheck.CodeInvalidProtocol {
		t.Errorf("Validate(javascript) = %+v", r)
	}

	cfg.DefaultProtocol = "gopher"
	if _, err := Validate(cfg, "example.com"); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("Validate() with bad protocol err = %v, want INVALID_CONFIG", err)
	}
}
