// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete difychat configuration.
type Config struct {
	Gateway GatewayConfig `toml:"gateway" json:"gateway"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// GatewayConfig controls the HTTP client.
type GatewayConfig struct {
	BaseURL           string  `toml:"base_url" json:"base_url"`
	User              string  `toml:"user" json:"user"`
	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// ChatConfig controls sends and the model list.
type ChatConfig struct {
	DefaultModel     string `toml:"default_model" json:"default_model"`
	SendScope        string `toml:"send_scope" json:"send_scope"`
	DefaultFileQuery string `toml:"default_file_query" json:"default_file_query"`

	// Background persistence
	PersistWorkers     int `toml:"persist_workers" json:"persist_workers"`
	PersistTimeoutSecs int `toml:"persist_timeout_secs" json:"persist_timeout_secs"`

	Models []model.ModelInfo `toml:"models" json:"models"`
}

// StorageConfig controls the local cache and archive. Empty paths resolve
// under the config directory.
type StorageConfig struct {
	CacheEnabled   bool   `toml:"cache_enabled" json:"cache_enabled"`
	CachePath      string `toml:"cache_path" json:"cache_path"`
	ArchiveEnabled bool   `toml:"archive_enabled" json:"archive_enabled"`
	ArchivePath    string `toml:"archive_path" json:"archive_path"`
}

// UIConfig controls rendering.
type UIConfig struct {
	RenderMarkdown bool   `toml:"render_markdown" json:"render_markdown"`
	Theme          string `toml:"theme" json:"theme"` // auto, dark, light
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level     string `toml:"level" json:"level"`   // debug, info, warn, error
	Format    string `toml:"format" json:"format"` // text, json
	Output    string `toml:"output" json:"output"` // stderr, stdout, file
	FilePath  string `toml:"file_path" json:"file_path"`
	AddSource bool   `toml:"add_source" json:"add_source"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultModelCount is how many gateway model slots exist by default.
const DefaultModelCount = 11

// DefaultModels returns dify1 through dify11.
func DefaultModels() []model.ModelInfo {
	models := make([]model.ModelInfo, 0, DefaultModelCount)
	for i := 1; i <= DefaultModelCount; i++ {
		models = append(models, model.ModelInfo{
			ID:   "dify" + strconv.Itoa(i),
			Name: "Dify " + strconv.Itoa(i),
		})
	}
	return models
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:           "http://localhost:5004",
			User:              "difychat-user",
			TimeoutSecs:       30,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Chat: ChatConfig{
			DefaultModel:       "dify1",
			SendScope:          "global",
			DefaultFileQuery:   "Please analyze or answer based on the files I uploaded.",
			PersistWorkers:     2,
			PersistTimeoutSecs: 30,
			Models:             DefaultModels(),
		},
		Storage: StorageConfig{
			CacheEnabled:   true,
			ArchiveEnabled: true,
		},
		UI: UIConfig{
			RenderMarkdown: true,
			Theme:          "auto",
			ShowTimestamps: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "file",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// DirEnv overrides the config directory.
const DirEnv = "DIFYCHAT_HOME"

// ConfigDir returns the difychat configuration directory.
func ConfigDir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".difychat"), nil
}

// ConfigPathTOML returns the path to the config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolvePath returns p, or name inside the config directory when p is empty.
func ResolvePath(p, name string) string {
	if p != "" {
		return p
	}
	dir, err := ConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

// CachePath returns the resolved bbolt cache path.
func (c *Config) CachePath() string {
	return ResolvePath(c.Storage.CachePath, "cache.db")
}

// ArchivePath returns the resolved SQLite archive path.
func (c *Config) ArchivePath() string {
	return ResolvePath(c.Storage.ArchivePath, "archive.db")
}

// LogPath returns the resolved log file path.
func (c *Config) LogPath() string {
	return ResolvePath(c.Log.FilePath, "difychat.log")
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.difychat/config.toml, falling back to defaults when it does
// not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads a config file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadTOML decodes path over cfg. Keys missing from the file keep their
// current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	// A models table in the file replaces the default list, not appends.
	models := cfg.Chat.Models
	cfg.Chat.Models = nil
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		cfg.Chat.Models = models
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if !md.IsDefined("chat", "models") {
		cfg.Chat.Models = models
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %v\n", path, undecoded)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# difychat configuration file\n")
	buf.WriteString("# Generated by difychat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
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
	validScopes  = map[string]bool{"global": true, "conversation": true, "per-conversation": true}
	validThemes  = map[string]bool{"auto": true, "dark": true, "light": true}
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
	validOutputs = map[string]bool{"stderr": true, "stdout": true, "file": true}
)

// Validate checks every section and returns ValidateErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if u, err := url.Parse(c.Gateway.BaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		add("gateway.base_url", "invalid URL '%s', must be http(s)://host[:port]", c.Gateway.BaseURL)
	}
	if strings.TrimSpace(c.Gateway.User) == "" {
		add("gateway.user", "must not be empty")
	}
	if c.Gateway.TimeoutSecs < 0 {
		add("gateway.timeout_secs", "must not be negative")
	}
	if c.Gateway.RequestsPerSecond < 0 {
		add("gateway.requests_per_second", "must not be negative")
	}
	if c.Gateway.Burst < 0 {
		add("gateway.burst", "must not be negative")
	}

	// Chat
	if !validScopes[strings.ToLower(c.Chat.SendScope)] {
		add("chat.send_scope", "invalid scope '%s', must be one of: global, conversation", c.Chat.SendScope)
	}
	if c.Chat.PersistWorkers < 1 || c.Chat.PersistWorkers > 32 {
		add("chat.persist_workers", "must be between 1 and 32, got %d", c.Chat.PersistWorkers)
	}
	if c.Chat.PersistTimeoutSecs < 0 {
		add("chat.persist_timeout_secs", "must not be negative")
	}
	if len(c.Chat.Models) == 0 {
		add("chat.models", "at least one model is required")
	}
	seen := make(map[string]bool, len(c.Chat.Models))
	for i, m := range c.Chat.Models {
		if m.ID == "" {
			add(fmt.Sprintf("chat.models[%d].id", i), "must not be empty")
			continue
		}
		if seen[m.ID] {
			add(fmt.Sprintf("chat.models[%d].id", i), "duplicate model id '%s'", m.ID)
		}
		seen[m.ID] = true
	}
	if len(c.Chat.Models) > 0 && !seen[c.Chat.DefaultModel] {
		add("chat.default_model", "'%s' is not in chat.models", c.Chat.DefaultModel)
	}

	// UI
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	// Log
	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}
	if !validOutputs[strings.ToLower(c.Log.Output)] {
		add("log.output", "invalid output '%s', must be one of: stderr, stdout, file", c.Log.Output)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have a sensible default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = d.Gateway.BaseURL
	}
	c.Gateway.BaseURL = strings.TrimRight(c.Gateway.BaseURL, "/")
	if c.Gateway.User == "" {
		c.Gateway.User = d.Gateway.User
	}
	if c.Gateway.TimeoutSecs == 0 {
		c.Gateway.TimeoutSecs = d.Gateway.TimeoutSecs
	}
	if c.Gateway.RequestsPerSecond == 0 {
		c.Gateway.RequestsPerSecond = d.Gateway.RequestsPerSecond
	}
	if c.Gateway.Burst == 0 {
		c.Gateway.Burst = d.Gateway.Burst
	}

	if len(c.Chat.Models) == 0 {
		c.Chat.Models = d.Chat.Models
	}
	for i := range c.Chat.Models {
		if c.Chat.Models[i].Name == "" {
			c.Chat.Models[i].Name = c.Chat.Models[i].ID
		}
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = c.Chat.Models[0].ID
	}
	if c.Chat.SendScope == "" {
		c.Chat.SendScope = d.Chat.SendScope
	}
	if c.Chat.DefaultFileQuery == "" {
		c.Chat.DefaultFileQuery = d.Chat.DefaultFileQuery
	}
	if c.Chat.PersistWorkers == 0 {
		c.Chat.PersistWorkers = d.Chat.PersistWorkers
	}
	if c.Chat.PersistTimeoutSecs == 0 {
		c.Chat.PersistTimeoutSecs = d.Chat.PersistTimeoutSecs
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = d.Log.Output
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - DIFYCHAT_GATEWAY_URL: overrides gateway.base_url
//   - DIFYCHAT_USER: overrides gateway.user
//   - DIFYCHAT_MODEL: overrides chat.default_model
//   - DIFYCHAT_SEND_SCOPE: overrides chat.send_scope
//   - DIFYCHAT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DIFYCHAT_GATEWAY_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("DIFYCHAT_USER"); v != "" {
		c.Gateway.User = v
	}
	if v := os.Getenv("DIFYCHAT_MODEL"); v != "" {
		c.Chat.DefaultModel = v
	}
	if v := os.Getenv("DIFYCHAT_SEND_SCOPE"); v != "" {
		c.Chat.SendScope = v
	}
	if v := os.Getenv("DIFYCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns a value by dotted key, e.g. "gateway.base_url".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted key. String values are converted to the
// field's type. Slices cannot be set this way.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() || field.Kind() == reflect.Slice || field.Kind() == reflect.Struct {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to a Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue assigns value to field, parsing strings as needed.
func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(strings.ToLower(s))
			if err != nil {
				switch strings.ToLower(s) {
				case "yes", "on":
					b = true
				case "no", "off":
					b = false
				default:
					return fmt.Errorf("invalid boolean value: %q", s)
				}
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	return []string{
		"gateway.base_url",
		"gateway.user",
		"gateway.timeout_secs",
		"gateway.requests_per_second",
		"gateway.burst",
		"chat.default_model",
		"chat.send_scope",
		"chat.default_file_query",
		"chat.persist_workers",
		"chat.persist_timeout_secs",
		"storage.cache_enabled",
		"storage.cache_path",
		"storage.archive_enabled",
		"storage.archive_path",
		"ui.render_markdown",
		"ui.theme",
		"ui.show_timestamps",
		"log.level",
		"log.format",
		"log.output",
		"log.file_path",
		"log.add_source",
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Model returns the configured model with id.
func (c *Config) Model(id string) (model.ModelInfo, bool) {
	for _, m := range c.Chat.Models {
		if m.ID == id {
			return m, true
		}
	}
	return model.ModelInfo{}, false
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Chat.Models != nil {
		clone.Chat.Models = append([]model.ModelInfo(nil), c.Chat.Models...)
	}
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the global configuration state.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
