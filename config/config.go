package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"soundgrid/logger"
)

// Config holds all configuration for the application
type Config struct {
	// Audio output configuration
	Output OutputConfig `mapstructure:"output"`

	// Playback engine limits
	Engine EngineConfig `mapstructure:"engine"`

	// Output device watching
	Device DeviceConfig `mapstructure:"device"`

	// Slot persistence
	Store StoreConfig `mapstructure:"store"`

	// HTTP control surface
	API APIConfig `mapstructure:"api"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// OutputConfig selects the audio backend
type OutputConfig struct {
	Backend    string        `mapstructure:"backend"` // malgo, speaker or headless
	SampleRate int           `mapstructure:"sample_rate"`
	Buffer     time.Duration `mapstructure:"buffer"`
	Device     string        `mapstructure:"device"`
}

// EngineConfig holds playback engine limits
type EngineConfig struct {
	Slots           int           `mapstructure:"slots"`
	InstanceCap     int           `mapstructure:"instance_cap"`
	ResourceLimit   int           `mapstructure:"resource_limit"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	InitialSweep    time.Duration `mapstructure:"initial_sweep"`
	MinEchoDelay    time.Duration `mapstructure:"min_echo_delay"`
	ResampleQuality int           `mapstructure:"resample_quality"`
	BufferTTL       time.Duration `mapstructure:"buffer_ttl"`
}

// DeviceConfig holds output device polling configuration
type DeviceConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// StoreConfig holds slot database configuration
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Listen  string `mapstructure:"listen"`
	Metrics bool   `mapstructure:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Backends lists the supported output backends.
var Backends = []string{"malgo", "speaker", "headless"}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output.backend", "malgo")
	v.SetDefault("output.sample_rate", 48000)
	v.SetDefault("output.buffer", "100ms")
	v.SetDefault("output.device", "")
	v.SetDefault("engine.slots", 36)
	v.SetDefault("engine.instance_cap", 8)
	v.SetDefault("engine.resource_limit", 50)
	v.SetDefault("engine.sweep_interval", "5m")
	v.SetDefault("engine.initial_sweep", "30s")
	v.SetDefault("engine.min_echo_delay", "100ms")
	v.SetDefault("engine.resample_quality", 4)
	v.SetDefault("engine.buffer_ttl", "10m")
	v.SetDefault("device.poll_interval", "5s")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "soundgrid.db")
	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.metrics", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration through v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Read config file
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.soundgrid")
		v.AddConfigPath("/etc/soundgrid")
	}

	// Allow environment variables
	v.SetEnvPrefix("SOUNDGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", v.ConfigFileUsed()))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !slices.Contains(Backends, strings.ToLower(c.Output.Backend)) {
		return &ConfigError{Field: "output.backend", Message: fmt.Sprintf("must be one of %s", strings.Join(Backends, ", "))}
	}
	if c.Output.SampleRate < 8000 || c.Output.SampleRate > 192000 {
		return &ConfigError{Field: "output.sample_rate", Message: "must be between 8000 and 192000"}
	}
	if c.Output.Buffer <= 0 {
		return &ConfigError{Field: "output.buffer", Message: "must be positive"}
	}
	if c.Engine.Slots < 1 || c.Engine.Slots > 256 {
		return &ConfigError{Field: "engine.slots", Message: "must be between 1 and 256"}
	}
	if c.Engine.InstanceCap < 1 {
		return &ConfigError{Field: "engine.instance_cap", Message: "must be at least 1"}
	}
	if c.Engine.ResourceLimit < 1 {
		return &ConfigError{Field: "engine.resource_limit", Message: "must be at least 1"}
	}
	if c.Engine.SweepInterval <= 0 {
		return &ConfigError{Field: "engine.sweep_interval", Message: "must be positive"}
	}
	if c.Engine.InitialSweep < 0 {
		return &ConfigError{Field: "engine.initial_sweep", Message: "must not be negative"}
	}
	if c.Engine.MinEchoDelay < 0 {
		return &ConfigError{Field: "engine.min_echo_delay", Message: "must not be negative"}
	}
	if c.Engine.ResampleQuality < 1 || c.Engine.ResampleQuality > 64 {
		return &ConfigError{Field: "engine.resample_quality", Message: "must be between 1 and 64"}
	}
	if c.Device.PollInterval <= 0 {
		return &ConfigError{Field: "device.poll_interval", Message: "must be positive"}
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return &ConfigError{Field: "store.path", Message: "database path is required when the store is enabled"}
	}
	if c.API.Listen == "" {
		return &ConfigError{Field: "api.listen", Message: "listen address is required"}
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return &ConfigError{Field: "logging.level", Message: "must be debug, info, warn (or warning) or error"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or text"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
