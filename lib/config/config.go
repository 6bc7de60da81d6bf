// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for mend.
//
// Configuration is loaded from a single YAML file specified by:
//   - MEND_CONFIG environment variable, or
//   - --config flag passed to the command
//
// When neither is set, ${XDG_CONFIG_HOME:-~/.config}/mend/mend.yaml is
// used if it exists; otherwise the built-in defaults apply. On top of
// the file, a small set of MEND_* environment variables override
// individual tuning knobs so behavior can be adjusted per-invocation
// without editing the file. A malformed override value is ignored and
// the configured value kept.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for mend.
type Config struct {
	// Provider configures the LLM endpoint.
	Provider ProviderConfig `yaml:"provider"`

	// Context configures context window management.
	Context ContextConfig `yaml:"context"`

	// Tools configures tool execution limits.
	Tools ToolsConfig `yaml:"tools"`
}

// ProviderConfig configures the LLM endpoint.
type ProviderConfig struct {
	// BaseURL is the API root of an OpenAI-compatible endpoint,
	// without a trailing slash.
	// Default: https://api.openai.com/v1
	BaseURL string `yaml:"base_url"`

	// Model is the model identifier sent with every request.
	// Default: gpt-4o
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in the config file.
	// Default: OPENAI_API_KEY
	APIKeyEnv string `yaml:"api_key_env"`

	// MaxOutputTokens caps the response length per request.
	// Zero means the provider's default.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// ContextConfig configures context window management.
type ContextConfig struct {
	// Limit overrides the model's context window size in tokens.
	// Zero means resolve from the model identifier.
	// Override: MEND_CONTEXT_LIMIT
	Limit int `yaml:"limit"`

	// DisableAutoCompact turns off automatic compaction when usage
	// crosses the threshold. Manual /compact still works.
	// Override: MEND_DISABLE_AUTOCOMPACT (1/true)
	DisableAutoCompact bool `yaml:"disable_auto_compact"`

	// CompactThreshold is the usage ratio that triggers compaction.
	// Default: 0.75. Override: MEND_COMPACT_THRESHOLD
	CompactThreshold float64 `yaml:"compact_threshold"`

	// PruneProtect is the token budget of recent tool output that
	// pruning never touches. Default: 40000.
	// Override: MEND_PRUNE_PROTECT
	PruneProtect int `yaml:"prune_protect"`

	// PruneMinimum is the total tool-output token count below which
	// pruning is not worth running. Default: 20000.
	// Override: MEND_PRUNE_MINIMUM
	PruneMinimum int `yaml:"prune_minimum"`

	// ProactivePruneThreshold is the usage ratio at which
	// content-aware pruning runs ahead of compaction. Zero disables
	// proactive pruning entirely. Default: 0.6.
	// Override: MEND_PROACTIVE_PRUNE (0 to disable)
	ProactivePruneThreshold float64 `yaml:"proactive_prune_threshold"`
}

// ToolsConfig configures tool execution limits.
type ToolsConfig struct {
	// Workspace is the directory tools operate in. All file paths are
	// confined beneath it. Default: the current working directory.
	Workspace string `yaml:"workspace"`

	// ShellTimeout is how long run_shell waits before killing the
	// command, as a Go duration string. Default: 60s.
	ShellTimeout string `yaml:"shell_timeout"`

	// MaxOutputBytes caps how much of a tool's output is returned to
	// the model. Default: 262144 (256KB).
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// Default returns the default configuration. These defaults are a
// complete working configuration; the file and environment overrides
// refine them.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Context: ContextConfig{
			CompactThreshold:        0.75,
			PruneProtect:            40_000,
			PruneMinimum:            20_000,
			ProactivePruneThreshold: 0.6,
		},
		Tools: ToolsConfig{
			ShellTimeout:   "60s",
			MaxOutputBytes: 256 * 1024,
		},
	}
}

// Load loads configuration from MEND_CONFIG, the default config file
// location, or the built-in defaults, in that order. Environment
// overrides are applied last.
func Load() (*Config, error) {
	if path := os.Getenv("MEND_CONFIG"); path != "" {
		return LoadFile(path)
	}

	if path := defaultConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	cfg := Default()
	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults and applying environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// defaultConfigPath returns the conventional config file location, or
// the empty string when the home directory cannot be determined.
func defaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mend", "mend.yaml")
}

// applyEnvironment applies MEND_* overrides on top of the loaded
// configuration. Unparseable values are ignored, keeping the
// configured value.
func (c *Config) applyEnvironment() {
	if value, ok := envInt("MEND_CONTEXT_LIMIT"); ok {
		c.Context.Limit = value
	}
	if value, ok := envBool("MEND_DISABLE_AUTOCOMPACT"); ok {
		c.Context.DisableAutoCompact = value
	}
	if value, ok := envFloat("MEND_COMPACT_THRESHOLD", false); ok {
		c.Context.CompactThreshold = value
	}
	if value, ok := envInt("MEND_PRUNE_PROTECT"); ok {
		c.Context.PruneProtect = value
	}
	if value, ok := envInt("MEND_PRUNE_MINIMUM"); ok {
		c.Context.PruneMinimum = value
	}
	if value, ok := envFloat("MEND_PROACTIVE_PRUNE", true); ok {
		c.Context.ProactivePruneThreshold = value
	}
	if value := os.Getenv("MEND_MODEL"); value != "" {
		c.Provider.Model = value
	}
	if value := os.Getenv("MEND_BASE_URL"); value != "" {
		c.Provider.BaseURL = value
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// envFloat parses a ratio override in (0, 1]. allowZero widens the
// range to [0, 1] for knobs where zero means "disabled".
func envFloat(name string, allowZero bool) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || value > 1 {
		return 0, false
	}
	if value == 0 && !allowZero {
		return 0, false
	}
	return value, true
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return value, true
}

// APIKey resolves the API key from the configured environment
// variable. An empty key is allowed: local endpoints (Ollama, vLLM)
// often require none.
func (c *Config) APIKey() string {
	if c.Provider.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Provider.APIKeyEnv)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("provider.base_url is required"))
	}
	if c.Provider.Model == "" {
		errs = append(errs, fmt.Errorf("provider.model is required"))
	}
	if c.Context.CompactThreshold <= 0 || c.Context.CompactThreshold > 1 {
		errs = append(errs, fmt.Errorf("context.compact_threshold must be in (0, 1]"))
	}
	if c.Context.ProactivePruneThreshold < 0 || c.Context.ProactivePruneThreshold > 1 {
		errs = append(errs, fmt.Errorf("context.proactive_prune_threshold must be in [0, 1] (0 disables proactive pruning)"))
	}
	if c.Context.PruneProtect < 0 {
		errs = append(errs, fmt.Errorf("context.prune_protect must not be negative"))
	}
	if c.Context.PruneMinimum < 0 {
		errs = append(errs, fmt.Errorf("context.prune_minimum must not be negative"))
	}
	if c.Tools.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("tools.max_output_bytes must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
