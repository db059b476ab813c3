package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/c360/flowkit/errors"
)

// Config is the complete editor service configuration.
type Config struct {
	Version  string         `json:"version,omitempty"`
	HTTP     HTTPConfig     `json:"http"`
	NATS     NATSConfig     `json:"nats"`
	Editor   EditorConfig   `json:"editor"`
	Catalogs CatalogConfig  `json:"catalogs"`
	Debugger DebuggerConfig `json:"debugger"`
	Logging  LoggingConfig  `json:"logging"`
}

// HTTPConfig configures the editor API listener.
type HTTPConfig struct {
	Addr            string        `json:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty"`
}

// NATSConfig configures the NATS connection used for flow persistence.
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
}

// EditorConfig holds editor-wide behavior settings.
type EditorConfig struct {
	// OrphanPinsEnabled is the global toggle for retaining
	// removed-but-connected pins across reconstruction.
	OrphanPinsEnabled bool `json:"orphan_pins_enabled"`
}

// CatalogConfig locates the node kind catalogs.
type CatalogConfig struct {
	Dir string `json:"dir,omitempty"`
}

// DebuggerConfig locates the persisted breakpoint settings.
type DebuggerConfig struct {
	SettingsPath string `json:"settings_path,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "http.addr is required")
	}
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "nats.url is required")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nats.url must start with nats:// or tls://", errors.ErrInvalidConfig),
			"config", "Validate", "nats url scheme")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown logging level %q", errors.ErrInvalidConfig, c.Logging.Level),
			"config", "Validate", "logging level")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown logging format %q", errors.ErrInvalidConfig, c.Logging.Format),
			"config", "Validate", "logging format")
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update replaces the configuration after validating it.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Update", "config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	sc.config = cfg.Clone()
	sc.mu.Unlock()
	return nil
}
