package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	ternerrors "github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/inject"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/urlcheck"
	"github.com/hpungsan/tern/internal/utm"
)

// DefaultOverrideKey is the share_overrides entry applied for every platform.
const DefaultOverrideKey = "default"

// Config holds application configuration.
type Config struct {
	// Enabled turns capture and append on or off. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty"`

	// KeyFormat is the convention used for storage and returned parameter sets:
	// "underscore" (utm_source) or "compact" (utmSource).
	KeyFormat string `json:"key_format,omitempty"`

	// StorageKey is the session slot the parameter set is stored under.
	StorageKey string `json:"storage_key,omitempty"`

	// CaptureKeys is an allowlist of keys to capture. Empty captures every utm_ key.
	CaptureKeys []string `json:"capture_keys,omitempty"`

	// DefaultParams are used when capture finds nothing and the session is empty.
	DefaultParams map[string]string `json:"default_params,omitempty"`

	// ShareOverrides maps a platform name to parameters applied when appending
	// for that platform. The "default" entry applies to every platform.
	// Platform names are matched case-insensitively.
	ShareOverrides map[string]map[string]string `json:"share_overrides,omitempty"`

	// ExcludeKeys are never appended, whichever convention they are given in.
	ExcludeKeys []string `json:"exclude_keys,omitempty"`

	// DefaultPlacement is where Append writes parameters: "query" or "fragment".
	DefaultPlacement string `json:"default_placement,omitempty"`

	// DefaultProtocol is prepended to base URLs given without a scheme.
	DefaultProtocol string `json:"default_protocol,omitempty"`

	// RedirectHosts are the hosts the web /go endpoint may redirect to,
	// besides the server's own host. "*.example.com" allows subdomains.
	RedirectHosts []string `json:"redirect_hosts,omitempty"`

	// SessionTTLHours is how long an idle stored session survives before
	// `tern sessions purge` removes it. 0 disables expiry.
	SessionTTLHours int `json:"session_ttl_hours,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names ("utm", "url") to disable entirely.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// envOverrides holds environment values that override file configuration.
type envOverrides struct {
	Enabled          *bool    `env:"TERN_ENABLED"`
	KeyFormat        string   `env:"TERN_KEY_FORMAT"`
	StorageKey       string   `env:"TERN_STORAGE_KEY"`
	CaptureKeys      []string `env:"TERN_CAPTURE_KEYS" envSeparator:","`
	ExcludeKeys      []string `env:"TERN_EXCLUDE_KEYS" envSeparator:","`
	DefaultPlacement string   `env:"TERN_DEFAULT_PLACEMENT"`
	DefaultProtocol  string   `env:"TERN_DEFAULT_PROTOCOL"`
	RedirectHosts    []string `env:"TERN_REDIRECT_HOSTS" envSeparator:","`
	SessionTTLHours  int      `env:"TERN_SESSION_TTL_HOURS"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		KeyFormat:        string(utm.FormatUnderscore),
		StorageKey:       session.DefaultSlot,
		DefaultPlacement: string(inject.PlacementQuery),
		DefaultProtocol:  "https",
		SessionTTLHours:  24,
	}
}

// IsEnabled reports whether tracking is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Format returns the parsed key format, defaulting to underscore.
func (c *Config) Format() utm.Format {
	f, err := utm.ParseFormat(c.KeyFormat)
	if err != nil || f == "" {
		return utm.FormatUnderscore
	}
	return f
}

// Placement returns the parsed default placement, defaulting to query.
func (c *Config) Placement() inject.Placement {
	p, err := inject.ParsePlacement(c.DefaultPlacement)
	if err != nil {
		return inject.PlacementQuery
	}
	return p
}

// Slot returns the storage slot, defaulting to session.DefaultSlot.
func (c *Config) Slot() string {
	if strings.TrimSpace(c.StorageKey) == "" {
		return session.DefaultSlot
	}
	return c.StorageKey
}

// Validate checks that every value can be used. Invalid configuration is a
// programming error and is always reported.
func (c *Config) Validate() error {
	if _, err := utm.ParseFormat(c.KeyFormat); err != nil {
		return err
	}
	if _, err := inject.ParsePlacement(c.DefaultPlacement); err != nil {
		return err
	}
	if c.DefaultProtocol != "" {
		if _, err := urlcheck.NewValidator(c.DefaultProtocol); err != nil {
			return err
		}
	}
	if c.SessionTTLHours < 0 {
		return ternerrors.NewInvalidConfig("session_ttl_hours", "must not be negative")
	}
	for _, k := range c.CaptureKeys {
		if !utm.IsUTMKey(k) {
			return ternerrors.NewInvalidConfig("capture_keys", "not a utm key: "+k)
		}
	}
	for _, h := range c.RedirectHosts {
		if !urlcheck.ValidHostPattern(h) {
			return ternerrors.NewInvalidConfig("redirect_hosts", "not a host name: "+h)
		}
	}
	if !utm.IsValid(c.DefaultParams, "") {
		return ternerrors.NewInvalidConfig("default_params", "keys must be utm keys")
	}
	for platform, params := range c.ShareOverrides {
		if !utm.IsValid(params, "") {
			return ternerrors.NewInvalidConfig("share_overrides."+platform, "keys must be utm keys")
		}
	}
	return checkOverrideCollisions(c.ShareOverrides)
}

// Overrides returns the share_overrides entry for platform, matched
// case-insensitively. It returns nil when there is none.
func (c *Config) Overrides(platform string) map[string]string {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return nil
	}
	if params, ok := c.ShareOverrides[platformKey(platform)]; ok {
		return params
	}
	for name, params := range c.ShareOverrides {
		if strings.EqualFold(strings.TrimSpace(name), platform) {
			return params
		}
	}
	return nil
}

// checkOverrideCollisions rejects platform names that differ only in case.
func checkOverrideCollisions(overrides map[string]map[string]string) error {
	seen := make(map[string]string, len(overrides))
	for name := range overrides {
		folded := platformKey(name)
		if other, ok := seen[folded]; ok {
			return ternerrors.NewInvalidConfig("share_overrides."+name,
				"platform names differ only in case: "+other+", "+name)
		}
		seen[folded] = name
	}
	return nil
}

// Load loads configuration from baseDir/config.json, then applies
// environment overrides. Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return ApplyEnv(cfg)
}

// LoadWithRepo loads configuration from both global (~/.tern) and repo (.tern) directories.
// Repo config is found by walking upward from startDir to find the nearest .tern/config.json.
// Repo config takes precedence for scalar values; arrays and maps are merged.
// Environment overrides are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return ApplyEnv(Merge(Merge(DefaultConfig(), global), repo))
}

// ApplyEnv overlays TERN_* environment variables onto cfg.
func ApplyEnv(cfg *Config) (*Config, error) {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return nil, ternerrors.NewInvalidConfig("environment", err.Error())
	}
	return Merge(cfg, &Config{
		Enabled:          e.Enabled,
		KeyFormat:        e.KeyFormat,
		StorageKey:       e.StorageKey,
		CaptureKeys:      e.CaptureKeys,
		ExcludeKeys:      e.ExcludeKeys,
		DefaultPlacement: e.DefaultPlacement,
		DefaultProtocol:  e.DefaultProtocol,
		RedirectHosts:    e.RedirectHosts,
		SessionTTLHours:  e.SessionTTLHours,
	}), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .tern/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".tern", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := checkOverrideCollisions(cfg.ShareOverrides); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and
// deduplicated; maps are merged key-wise with overlay entries winning.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Enabled = base.Enabled
	if overlay.Enabled != nil {
		enabled := *overlay.Enabled
		result.Enabled = &enabled
	}

	result.KeyFormat = pickString(overlay.KeyFormat, base.KeyFormat)
	result.StorageKey = pickString(overlay.StorageKey, base.StorageKey)
	result.DefaultPlacement = pickString(overlay.DefaultPlacement, base.DefaultPlacement)
	result.DefaultProtocol = pickString(overlay.DefaultProtocol, base.DefaultProtocol)

	result.SessionTTLHours = pickInt(overlay.SessionTTLHours, base.SessionTTLHours)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.CaptureKeys = mergeStringSlice(base.CaptureKeys, overlay.CaptureKeys)
	result.ExcludeKeys = mergeStringSlice(base.ExcludeKeys, overlay.ExcludeKeys)
	result.RedirectHosts = mergeStringSlice(base.RedirectHosts, overlay.RedirectHosts)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	result.DefaultParams = mergeParams(base.DefaultParams, overlay.DefaultParams)

	if len(base.ShareOverrides)+len(overlay.ShareOverrides) > 0 {
		result.ShareOverrides = make(map[string]map[string]string)
		for platform, params := range base.ShareOverrides {
			key := platformKey(platform)
			result.ShareOverrides[key] = mergeParams(result.ShareOverrides[key], params)
		}
		for platform, params := range overlay.ShareOverrides {
			key := platformKey(platform)
			result.ShareOverrides[key] = mergeParams(result.ShareOverrides[key], params)
		}
	}

	return result
}

func platformKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func mergeParams(base, overlay map[string]string) map[string]string {
	if len(base)+len(overlay) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
