package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/c360/flowkit/errors"
)

// Loader loads configuration from layered JSON files plus environment
// overrides. Later layers win; environment variables win over all layers.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a loader with the FLOWKIT environment prefix and
// validation enabled.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  "FLOWKIT",
	}
}

// AddLayer appends a configuration file layer.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation toggles validation of the final configuration.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file on top of the defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, file layers, and environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		if err := l.loadLayer(cfg, path); err != nil {
			return nil, err
		}
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Editor: EditorConfig{
			OrphanPinsEnabled: true,
		},
		Debugger: DebuggerConfig{
			SettingsPath: "flowkit-breakpoints.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadLayer unmarshals a JSON layer over the current configuration, so only
// fields present in the file override.
func (l *Loader) loadLayer(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapTransient(err, "config", "Load", "read config file "+path)
	}

	var layer layerConfig
	if err := json.Unmarshal(data, &layer); err != nil {
		return errors.WrapInvalid(err, "config", "Load", "parse config file "+path)
	}
	layer.apply(cfg)
	return nil
}

// layerConfig mirrors Config with pointer fields and string durations, so a
// layer only overrides what it sets.
type layerConfig struct {
	Version *string `json:"version"`
	HTTP    *struct {
		Addr            *string `json:"addr"`
		ShutdownTimeout *string `json:"shutdown_timeout"`
	} `json:"http"`
	NATS *struct {
		URL           *string `json:"url"`
		MaxReconnects *int    `json:"max_reconnects"`
		ReconnectWait *string `json:"reconnect_wait"`
	} `json:"nats"`
	Editor *struct {
		OrphanPinsEnabled *bool `json:"orphan_pins_enabled"`
	} `json:"editor"`
	Catalogs *struct {
		Dir *string `json:"dir"`
	} `json:"catalogs"`
	Debugger *struct {
		SettingsPath *string `json:"settings_path"`
	} `json:"debugger"`
	Logging *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"logging"`
}

func (layer *layerConfig) apply(cfg *Config) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) {
		if src == nil {
			return
		}
		if d, err := time.ParseDuration(*src); err == nil {
			*dst = d
		}
	}

	setString(&cfg.Version, layer.Version)
	if layer.HTTP != nil {
		setString(&cfg.HTTP.Addr, layer.HTTP.Addr)
		setDuration(&cfg.HTTP.ShutdownTimeout, layer.HTTP.ShutdownTimeout)
	}
	if layer.NATS != nil {
		setString(&cfg.NATS.URL, layer.NATS.URL)
		if layer.NATS.MaxReconnects != nil {
			cfg.NATS.MaxReconnects = *layer.NATS.MaxReconnects
		}
		setDuration(&cfg.NATS.ReconnectWait, layer.NATS.ReconnectWait)
	}
	if layer.Editor != nil && layer.Editor.OrphanPinsEnabled != nil {
		cfg.Editor.OrphanPinsEnabled = *layer.Editor.OrphanPinsEnabled
	}
	if layer.Catalogs != nil {
		setString(&cfg.Catalogs.Dir, layer.Catalogs.Dir)
	}
	if layer.Debugger != nil {
		setString(&cfg.Debugger.SettingsPath, layer.Debugger.SettingsPath)
	}
	if layer.Logging != nil {
		setString(&cfg.Logging.Level, layer.Logging.Level)
		setString(&cfg.Logging.Format, layer.Logging.Format)
	}
}

// applyEnvOverrides overrides configuration from FLOWKIT_* environment
// variables.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(l.envPrefix + "_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
	if v, ok := os.LookupEnv(l.envPrefix + "_NATS_URL"); ok {
		cfg.NATS.URL = v
	}
	if v, ok := os.LookupEnv(l.envPrefix + "_CATALOG_DIR"); ok {
		cfg.Catalogs.Dir = v
	}
	if v, ok := os.LookupEnv(l.envPrefix + "_DEBUGGER_SETTINGS"); ok {
		cfg.Debugger.SettingsPath = v
	}
	if v, ok := os.LookupEnv(l.envPrefix + "_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv(l.envPrefix + "_LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := os.LookupEnv(l.envPrefix + "_ORPHAN_PINS"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Editor.OrphanPinsEnabled = enabled
		}
	}
}
