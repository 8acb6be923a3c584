// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/jeranaias/nexuschat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nexuschat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server  ServerConfig  `toml:"server" json:"server"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Upload  UploadConfig  `toml:"upload" json:"upload"`
	Search  SearchConfig  `toml:"search" json:"search"`
	Export  ExportConfig  `toml:"export" json:"export"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Storage StorageConfig `toml:"storage" json:"storage"`
}

// ServerConfig describes the NexusChat server the client talks to.
type ServerConfig struct {
	// BaseURL is the server origin, e.g. http://127.0.0.1:5000
	BaseURL string `toml:"base_url" json:"base_url" env:"NEXUSCHAT_BASE_URL" validate:"required,url"`
	// UserAgent is sent with every request.
	UserAgent string `toml:"user_agent" json:"user_agent" env:"NEXUSCHAT_USER_AGENT"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme" json:"theme" env:"NEXUSCHAT_THEME" validate:"oneof=dark light auto"`
	// ShowTimestamps prints message times in the transcript.
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`
	// SidebarWidth is the history sidebar width in columns.
	SidebarWidth int `toml:"sidebar_width" json:"sidebar_width" validate:"min=16,max=60"`
	// TitleLength is the number of characters of the first message used as a session title.
	TitleLength int `toml:"title_length" json:"title_length" validate:"min=10,max=200"`
}

// UploadConfig mirrors the server's upload limits so files are rejected before any I/O.
type UploadConfig struct {
	MaxFileSizeMB     int      `toml:"max_file_size_mb" json:"max_file_size_mb" env:"NEXUSCHAT_MAX_FILE_SIZE_MB" validate:"min=1,max=1024"`
	AllowedExtensions []string `toml:"allowed_extensions" json:"allowed_extensions" env:"NEXUSCHAT_ALLOWED_EXTENSIONS" envSeparator:"," validate:"min=1,dive,required"`
}

// SearchConfig throttles incremental search while typing.
type SearchConfig struct {
	// RatePerSecond is the maximum number of incremental queries per second.
	RatePerSecond float64 `toml:"rate_per_second" json:"rate_per_second" validate:"gt=0"`
	// Burst is the number of queries allowed back to back.
	Burst int `toml:"burst" json:"burst" validate:"min=1"`
}

// ExportConfig holds defaults for `nexuschat export`.
type ExportConfig struct {
	Format    string `toml:"format" json:"format" env:"NEXUSCHAT_EXPORT_FORMAT" validate:"oneof=json md html"`
	OutputDir string `toml:"output_dir" json:"output_dir" env:"NEXUSCHAT_EXPORT_DIR"`
}

// LoggingConfig configures the rotated file logger.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" env:"NEXUSCHAT_LOG_LEVEL" validate:"oneof=debug info warn error"`
	File       string `toml:"file" json:"file" env:"NEXUSCHAT_LOG_FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" validate:"min=0"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" validate:"min=0"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" validate:"min=0"`
}

// StorageConfig holds local file locations.
type StorageConfig struct {
	// CookieDB is the SQLite database holding the login cookies.
	CookieDB string `toml:"cookie_db" json:"cookie_db" env:"NEXUSCHAT_COOKIE_DB"`
	// HistoryFile keeps REPL input history.
	HistoryFile string `toml:"history_file" json:"history_file"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
// Path fields are left empty; SetDefaults resolves them against ConfigDir.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Server: ServerConfig{
			BaseURL:   "http://127.0.0.1:5000",
			UserAgent: "nexuschat-tui",
		},
		UI: UIConfig{
			Theme:          "dark",
			ShowTimestamps: false,
			SidebarWidth:   30,
			TitleLength:    50,
		},
		Upload: UploadConfig{
			MaxFileSizeMB:     16,
			AllowedExtensions: []string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "webp"},
		},
		Search: SearchConfig{
			RatePerSecond: 4,
			Burst:         1,
		},
		Export: ExportConfig{
			Format:    "json",
			OutputDir: ".",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the nexuschat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("NEXUSCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nexuschat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.nexuschat/config.toml when present, otherwise the defaults.
// Environment overrides are applied last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. A missing file is not
// an error: defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, statErr)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
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
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies NEXUSCHAT_* environment variables to the config.
//
// Supported environment variables:
//   - NEXUSCHAT_BASE_URL: server.base_url
//   - NEXUSCHAT_USER_AGENT: server.user_agent
//   - NEXUSCHAT_THEME: ui.theme
//   - NEXUSCHAT_MAX_FILE_SIZE_MB: upload.max_file_size_mb
//   - NEXUSCHAT_ALLOWED_EXTENSIONS: upload.allowed_extensions (comma separated)
//   - NEXUSCHAT_EXPORT_FORMAT / NEXUSCHAT_EXPORT_DIR: export.*
//   - NEXUSCHAT_LOG_LEVEL / NEXUSCHAT_LOG_FILE: logging.*
//   - NEXUSCHAT_COOKIE_DB: storage.cookie_db
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// SetDefaults fills zero values and resolves file locations against ConfigDir.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	c.Server.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.UserAgent == "" {
		c.Server.UserAgent = defaults.Server.UserAgent
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	if c.UI.SidebarWidth == 0 {
		c.UI.SidebarWidth = defaults.UI.SidebarWidth
	}
	if c.UI.TitleLength == 0 {
		c.UI.TitleLength = defaults.UI.TitleLength
	}

	if c.Upload.MaxFileSizeMB == 0 {
		c.Upload.MaxFileSizeMB = defaults.Upload.MaxFileSizeMB
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = defaults.Upload.AllowedExtensions
	}
	for i, ext := range c.Upload.AllowedExtensions {
		c.Upload.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}

	if c.Search.RatePerSecond == 0 {
		c.Search.RatePerSecond = defaults.Search.RatePerSecond
	}
	if c.Search.Burst == 0 {
		c.Search.Burst = defaults.Search.Burst
	}

	if c.Export.Format == "" {
		c.Export.Format = defaults.Export.Format
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = defaults.Export.OutputDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	dir, err := ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "logs", "nexuschat.log")
	}
	if c.Storage.CookieDB == "" {
		c.Storage.CookieDB = filepath.Join(dir, "cookies.db")
	}
	if c.Storage.HistoryFile == "" {
		c.Storage.HistoryFile = filepath.Join(dir, "chat_history")
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# nexuschat configuration file\n")
	buf.WriteString("# Generated by nexuschat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config encode error: %v>", err)
	}
	return buf.String()
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Upload.AllowedExtensions = append([]string(nil), c.Upload.AllowedExtensions...)
	return &clone
}

// =============================================================================
// VALIDATION
// =============================================================================

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

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator, reporting fields by their TOML key.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate validates the configuration and returns a ValidateErrors on failure.
func (c *Config) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		errs = append(errs, ValidationError{Field: field, Message: describe(fe)})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value %v, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	// Make sure a later Global() does not overwrite cfg with a fresh load.
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
