// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for parley.
//
// Configuration is loaded from a single YAML file specified by:
//   - PARLEY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
// Environment variables never override config values; the only
// expansion performed is ${HOME} in file paths, for portability.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the client configuration.
type Config struct {
	// Homeserver configures the Matrix homeserver connection.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Account identifies the Matrix account the client operates as.
	Account AccountConfig `yaml:"account"`

	// Send configures outbound message composition.
	Send SendConfig `yaml:"send"`

	// Upload configures media uploads.
	Upload UploadConfig `yaml:"upload"`
}

// HomeserverConfig configures the Matrix homeserver connection.
type HomeserverConfig struct {
	// URL is the base URL of the homeserver (e.g., "https://matrix.example.org").
	URL string `yaml:"url"`

	// ServerName is the Matrix server name used in user and room
	// identifiers (e.g., "example.org"). May differ from the URL host
	// when the homeserver is behind delegation.
	ServerName string `yaml:"server_name"`
}

// AccountConfig identifies the Matrix account.
type AccountConfig struct {
	// UserID is the fully-qualified Matrix user ID (e.g., "@alice:example.org").
	UserID string `yaml:"user_id"`

	// AccessTokenFile is the path to a file holding the access token,
	// or "-" to read it from stdin. The token itself never appears in
	// the config file.
	AccessTokenFile string `yaml:"access_token_file"`
}

// SendConfig configures outbound message composition.
type SendConfig struct {
	// DisableMarkdown suppresses markdown detection: every text
	// message is sent as a plain body with no rich-text variant.
	DisableMarkdown bool `yaml:"disable_markdown"`
}

// UploadConfig configures media uploads.
type UploadConfig struct {
	// MaxBytes caps the size of a single media upload. Zero means
	// no client-side limit (the homeserver still enforces its own).
	MaxBytes int64 `yaml:"max_bytes"`
}

// Load loads configuration from the PARLEY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks — if PARLEY_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that required fields are present and well-formed.
// Error messages name the YAML field so the operator can fix the file
// without reading source code.
func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return fmt.Errorf("homeserver.url is required")
	}
	if !strings.HasPrefix(c.Homeserver.URL, "http://") && !strings.HasPrefix(c.Homeserver.URL, "https://") {
		return fmt.Errorf("homeserver.url %q must start with http:// or https://", c.Homeserver.URL)
	}
	if c.Account.UserID != "" && !strings.HasPrefix(c.Account.UserID, "@") {
		return fmt.Errorf("account.user_id %q must be a full Matrix user ID starting with '@'", c.Account.UserID)
	}
	if c.Upload.MaxBytes < 0 {
		return fmt.Errorf("upload.max_bytes must not be negative, got %d", c.Upload.MaxBytes)
	}
	return nil
}

// expandVariables expands ${HOME} in path-valued fields.
func (c *Config) expandVariables() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	c.Account.AccessTokenFile = strings.ReplaceAll(c.Account.AccessTokenFile, "${HOME}", home)
}
