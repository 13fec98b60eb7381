// Package config provides configuration loading and persistence for the stockroom daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a JSON file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the on-disk credentials and record identifiers.
// The file format matches the original scanner deployment: a flat JSON
// object with either a session token or an email/password pair, plus the
// status record and supplies collection identifiers.
type Config struct {
	// Token is the remote store session token. It may be rewritten after
	// a successful password login.
	Token string `json:"token,omitempty"`

	// Email and Password are the fallback credentials used when the token
	// is missing or rejected.
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	// Status is the identifier of the record whose title displays the
	// scanner heartbeat.
	Status string `json:"status"`

	// Supplies is the identifier of the collection holding the item records.
	Supplies string `json:"supplies"`

	// Timezone is the IANA name of the display timezone for the heartbeat
	// message. Defaults to the system's local timezone.
	Timezone string `json:"timezone,omitempty"`
}

// LoadConfig loads and parses configuration from a JSON file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Status == "" {
		return fmt.Errorf("status record ID is required")
	}
	if _, err := uuid.Parse(c.Status); err != nil {
		return fmt.Errorf("status must be a valid record ID: %w", err)
	}

	if c.Supplies == "" {
		return fmt.Errorf("supplies collection ID is required")
	}
	if _, err := uuid.Parse(c.Supplies); err != nil {
		return fmt.Errorf("supplies must be a valid collection ID: %w", err)
	}

	if c.Token == "" && (c.Email == "" || c.Password == "") {
		return fmt.Errorf("either token or email and password must be configured")
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone must be a valid IANA name: %w", err)
		}
	}

	return nil
}

// StatusID returns the parsed status record identifier.
func (c *Config) StatusID() uuid.UUID {
	return uuid.MustParse(c.Status)
}

// SuppliesID returns the parsed supplies collection identifier.
func (c *Config) SuppliesID() uuid.UUID {
	return uuid.MustParse(c.Supplies)
}

// Location returns the heartbeat display timezone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	// Already validated during load.
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Save writes the configuration back to disk. This happens after a
// successful password login upgrades the session token, so the original
// file is replaced atomically via a temporary file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}
