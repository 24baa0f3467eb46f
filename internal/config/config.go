// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollamachat.
//
// Configuration is read from ~/.ollamachat/config.toml, with sensible
// defaults, environment variable overrides, and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollamachat configuration.
type Config struct {
	Version string `toml:"version"`

	// Ollama server settings
	Ollama OllamaConfig `toml:"ollama"`

	// Defaults seed the per-conversation generation config
	Defaults GenerationConfig `toml:"defaults"`

	// Relay (CORS proxy) settings
	Relay RelayConfig `toml:"relay"`

	// UI settings
	UI UIConfig `toml:"ui"`

	// Storage settings
	Storage StorageConfig `toml:"storage"`
}

// OllamaConfig identifies the model server.
type OllamaConfig struct {
	// BaseURL is the server address without port, e.g. "http://192.168.1.86".
	BaseURL string `toml:"base_url"`
	// Port is the server port (default 11434).
	Port int `toml:"port"`
	// TimeoutSecs bounds non-streaming requests.
	TimeoutSecs int `toml:"timeout_secs"`
}

// Address returns the full base URL including the port.
func (o OllamaConfig) Address() string {
	if o.Port == 0 {
		return o.BaseURL
	}
	return o.BaseURL + ":" + strconv.Itoa(o.Port)
}

// GenerationConfig holds the default generation parameters for new
// conversations.
type GenerationConfig struct {
	Model         string  `toml:"model"`
	Temperature   float64 `toml:"temperature"`
	TopP          float64 `toml:"top_p"`
	TopK          int     `toml:"top_k"`
	RepeatPenalty float64 `toml:"repeat_penalty"`
	MaxTokens     int     `toml:"max_tokens"`
	SystemPrompt  string  `toml:"system_prompt"`
}

// RelayConfig configures the CORS relay server.
type RelayConfig struct {
	// ListenAddr is the address the relay binds (default ":8080").
	ListenAddr string `toml:"listen_addr"`
	// StaticDir serves static files for non-API paths when set.
	StaticDir string `toml:"static_dir"`
	// RateLimit caps per-client requests per second (0 disables).
	RateLimit float64 `toml:"rate_limit"`
	// RateBurst is the per-client burst size.
	RateBurst int `toml:"rate_burst"`
}

// UIConfig contains UI settings.
type UIConfig struct {
	// Theme is "light" or "dark".
	Theme string `toml:"theme"`
	// FontSize is carried for exported web clients; the terminal ignores it.
	FontSize int `toml:"font_size"`
}

// StorageConfig configures state persistence.
type StorageConfig struct {
	// Path is the SQLite state database (default ~/.ollamachat/state.db).
	Path string `toml:"path"`
	// SaveDelayMs is the persistence debounce in milliseconds.
	SaveDelayMs int `toml:"save_delay_ms"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Ollama: OllamaConfig{
			BaseURL:     "http://127.0.0.1",
			Port:        11434,
			TimeoutSecs: 30,
		},

		Defaults: GenerationConfig{
			Model:         "qwen3:32b",
			Temperature:   0.7,
			TopP:          0.9,
			TopK:          40,
			RepeatPenalty: 1.1,
			MaxTokens:     2048,
			SystemPrompt:  "",
		},

		Relay: RelayConfig{
			ListenAddr: ":8080",
			StaticDir:  "",
			RateLimit:  0,
			RateBurst:  20,
		},

		UI: UIConfig{
			Theme:    "light",
			FontSize: 14,
		},

		Storage: StorageConfig{
			Path:        "", // resolved against the config dir when empty
			SaveDelayMs: 500,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollamachat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollamachat"), nil
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
	return os.MkdirAll(dir, 0755)
}

// StatePath returns the resolved state database path.
func (c *Config) StatePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file, falling back to
// defaults when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaults.Ollama.BaseURL
	}
	if c.Ollama.Port == 0 {
		c.Ollama.Port = defaults.Ollama.Port
	}
	if c.Ollama.TimeoutSecs == 0 {
		c.Ollama.TimeoutSecs = defaults.Ollama.TimeoutSecs
	}
	if c.Defaults.Model == "" {
		c.Defaults.Model = defaults.Defaults.Model
	}
	if c.Defaults.Temperature == 0 {
		c.Defaults.Temperature = defaults.Defaults.Temperature
	}
	if c.Defaults.TopP == 0 {
		c.Defaults.TopP = defaults.Defaults.TopP
	}
	if c.Defaults.TopK == 0 {
		c.Defaults.TopK = defaults.Defaults.TopK
	}
	if c.Defaults.RepeatPenalty == 0 {
		c.Defaults.RepeatPenalty = defaults.Defaults.RepeatPenalty
	}
	if c.Defaults.MaxTokens == 0 {
		c.Defaults.MaxTokens = defaults.Defaults.MaxTokens
	}
	if c.Relay.ListenAddr == "" {
		c.Relay.ListenAddr = defaults.Relay.ListenAddr
	}
	if c.Relay.RateBurst == 0 {
		c.Relay.RateBurst = defaults.Relay.RateBurst
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.FontSize == 0 {
		c.UI.FontSize = defaults.UI.FontSize
	}
	if c.Storage.SaveDelayMs == 0 {
		c.Storage.SaveDelayMs = defaults.Storage.SaveDelayMs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMACHAT_MODEL: overrides defaults.model
//   - OLLAMACHAT_OLLAMA_URL: overrides ollama.base_url (may include the port)
//   - OLLAMACHAT_THEME: overrides ui.theme
//   - OLLAMACHAT_LISTEN: overrides relay.listen_addr
//   - OLLAMACHAT_STATE_PATH: overrides storage.path
func (c *Config) ApplyEnvOverrides() {
	if m := os.Getenv("OLLAMACHAT_MODEL"); m != "" {
		c.Defaults.Model = m
	}

	if raw := os.Getenv("OLLAMACHAT_URL"); raw != "" {
		c.setServerURL(raw)
	}
	if raw := os.Getenv("OLLAMACHAT_OLLAMA_URL"); raw != "" {
		c.setServerURL(raw)
	}

	if theme := os.Getenv("OLLAMACHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if addr := os.Getenv("OLLAMACHAT_LISTEN"); addr != "" {
		c.Relay.ListenAddr = addr
	}
	if path := os.Getenv("OLLAMACHAT_STATE_PATH"); path != "" {
		c.Storage.Path = path
	}
}

// setServerURL splits an override URL into base and port when the port is
// embedded, e.g. "http://192.168.1.86:11434".
func (c *Config) setServerURL(raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		c.Ollama.BaseURL = raw
		return
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err == nil {
			c.Ollama.Port = port
		}
		u.Host = u.Hostname()
	}
	c.Ollama.BaseURL = u.Scheme + "://" + u.Host
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := url.Parse(c.Ollama.BaseURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "ollama.base_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	}
	if c.Ollama.Port < 0 || c.Ollama.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "ollama.port",
			Message: fmt.Sprintf("must be 0-65535, got %d", c.Ollama.Port),
		})
	}

	if c.Defaults.Temperature < 0 {
		errs = append(errs, ValidationError{
			Field:   "defaults.temperature",
			Message: "must be non-negative",
		})
	}
	if c.Defaults.TopP < 0 || c.Defaults.TopP > 1 {
		errs = append(errs, ValidationError{
			Field:   "defaults.top_p",
			Message: "must be between 0.0 and 1.0",
		})
	}
	if c.Defaults.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "defaults.top_k",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Defaults.TopK),
		})
	}
	if c.Defaults.RepeatPenalty < 0 {
		errs = append(errs, ValidationError{
			Field:   "defaults.repeat_penalty",
			Message: "must be non-negative",
		})
	}
	if c.Defaults.MaxTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "defaults.max_tokens",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Defaults.MaxTokens),
		})
	}

	validThemes := map[string]bool{"light": true, "dark": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: light, dark", c.UI.Theme),
		})
	}

	if c.Relay.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "relay.rate_limit",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# ollamachat configuration file")
	fmt.Fprintln(file, "# Generated by ollamachat - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// ModelConfig maps the configured defaults onto the per-conversation
// generation config.
func (c *Config) ModelConfig() model.ModelConfig {
	return model.ModelConfig{
		Model:         c.Defaults.Model,
		Temperature:   c.Defaults.Temperature,
		TopP:          c.Defaults.TopP,
		TopK:          c.Defaults.TopK,
		RepeatPenalty: c.Defaults.RepeatPenalty,
		MaxTokens:     c.Defaults.MaxTokens,
		SystemPrompt:  c.Defaults.SystemPrompt,
	}
}

// Settings maps the config onto the persisted app settings used when no
// prior state exists.
func (c *Config) Settings() model.AppSettings {
	return model.AppSettings{
		Ollama: model.OllamaSettings{
			BaseURL: c.Ollama.BaseURL,
			Port:    c.Ollama.Port,
		},
		Theme:    c.UI.Theme,
		FontSize: c.UI.FontSize,
	}
}

// ClientConfig maps the config onto the transport client configuration.
func (c *Config) ClientConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL: c.Ollama.Address(),
		Timeout: time.Duration(c.Ollama.TimeoutSecs) * time.Second,
	}
}

// SaveDelay returns the persistence debounce as a duration.
func (c *Config) SaveDelay() time.Duration {
	return time.Duration(c.Storage.SaveDelayMs) * time.Millisecond
}
