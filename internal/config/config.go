// Package config loads erlcomplete settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lintingbin2009/Erl-AutoCompletion/internal/cache"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/patterns"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/scanner"
	"github.com/lintingbin2009/Erl-AutoCompletion/internal/watcher"
)

const (
	appName        = "erlcomplete"
	configFileName = "config.toml"
)

// Environment variables that override file settings
const (
	EnvCacheDir = "ERLCOMPLETE_CACHE_DIR"
	EnvRoots    = "ERLCOMPLETE_ROOTS" // os.PathListSeparator separated
	EnvVersion  = "ERLCOMPLETE_VERSION"
	EnvLogLevel = "ERLCOMPLETE_LOG_LEVEL"
)

// ErrNoRoots is returned by RequireRoots when no source root is configured
var ErrNoRoots = errors.New("no source roots configured")

// Config holds every setting of the indexer and its front ends.
type Config struct {
	// Sources
	Roots            []string `toml:"roots"`
	Extension        string   `toml:"extension"`
	RespectGitignore bool     `toml:"respect_gitignore"`

	// Cache
	CacheDir string `toml:"cache_dir"`
	DataType string `toml:"data_type"`
	Version  string `toml:"version"`

	// Indexing
	Workers      int               `toml:"workers"`
	MatchTimeout time.Duration     `toml:"match_timeout"`
	Patterns     map[string]string `toml:"patterns"`

	// Watching
	Watch           bool          `toml:"watch"`
	WatchDebounce   time.Duration `toml:"watch_debounce"`
	RebuildInterval time.Duration `toml:"rebuild_interval"`

	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Extension:       scanner.DefaultExtension,
		CacheDir:        defaultCacheDir(),
		DataType:        cache.DefaultDataType,
		Version:         cache.DefaultVersion,
		MatchTimeout:    patterns.DefaultMatchTimeout,
		WatchDebounce:   watcher.DefaultDebounce,
		RebuildInterval: watcher.DefaultMinInterval,
		LogLevel:        "info",
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(dir, appName)
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Load reads the config file at path, or the per-user default file when
// path is empty and that file exists, then applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if def, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Unknown keys are an error.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies ERLCOMPLETE_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.CacheDir = dir
	}
	if roots := os.Getenv(EnvRoots); roots != "" {
		c.Roots = nil
		for _, root := range filepath.SplitList(roots) {
			if root = strings.TrimSpace(root); root != "" {
				c.Roots = append(c.Roots, root)
			}
		}
	}
	if version := os.Getenv(EnvVersion); version != "" {
		c.Version = version
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

// SetDefaults fills zero values and normalizes paths.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.CacheDir == "" {
		c.CacheDir = defaults.CacheDir
	}
	if c.DataType == "" {
		c.DataType = defaults.DataType
	}
	if c.Version == "" {
		c.Version = defaults.Version
	}
	c.Extension = strings.TrimPrefix(c.Extension, ".")
	if c.Extension == "" {
		c.Extension = defaults.Extension
	}
	if c.MatchTimeout == 0 {
		c.MatchTimeout = defaults.MatchTimeout
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = defaults.WatchDebounce
	}
	if c.RebuildInterval == 0 {
		c.RebuildInterval = defaults.RebuildInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}

	c.CacheDir = expandHome(c.CacheDir)
	for i, root := range c.Roots {
		c.Roots[i] = expandHome(root)
	}
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.CacheDir == "" {
		errs = append(errs, ValidationError{Field: "cache_dir", Message: "must not be empty"})
	}
	if c.DataType == "" || strings.ContainsAny(c.DataType, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "data_type",
			Message: fmt.Sprintf("invalid data type %q, must be a plain file name part", c.DataType),
		})
	}
	if strings.ContainsAny(c.Extension, `/\*?[`) {
		errs = append(errs, ValidationError{
			Field:   "extension",
			Message: fmt.Sprintf("invalid extension %q", c.Extension),
		})
	}
	if c.Workers < 0 {
		errs = append(errs, ValidationError{Field: "workers", Message: "must not be negative"})
	}
	if c.MatchTimeout < 0 {
		errs = append(errs, ValidationError{Field: "match_timeout", Message: "must not be negative"})
	}
	if c.WatchDebounce < 0 {
		errs = append(errs, ValidationError{Field: "watch_debounce", Message: "must not be negative"})
	}
	if c.RebuildInterval < 0 {
		errs = append(errs, ValidationError{Field: "rebuild_interval", Message: "must not be negative"})
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
	}
	if _, err := c.PatternSet(); err != nil {
		errs = append(errs, ValidationError{Field: "patterns", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RequireRoots returns ErrNoRoots when no source root is configured.
func (c *Config) RequireRoots() error {
	if len(c.Roots) == 0 {
		return ErrNoRoots
	}
	return nil
}

// PatternSet compiles the default patterns with the configured overrides.
func (c *Config) PatternSet() (*patterns.Set, error) {
	return patterns.Compile(c.Patterns, c.MatchTimeout)
}

// SlogLevel returns the configured log level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel parses debug, info, warn or error (any case).
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", s)
	}
	return level, nil
}

// PatternNames returns the names of the configured overrides, sorted.
func (c *Config) PatternNames() []string {
	names := make([]string, 0, len(c.Patterns))
	for name := range c.Patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
