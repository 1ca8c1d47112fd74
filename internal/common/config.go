package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Render      RenderConfig    `toml:"render"`
	Notify      NotifyConfig    `toml:"notify"`
	Power       PowerConfig     `toml:"power"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

type StorageConfig struct {
	Badger       BadgerConfig `toml:"badger"`
	HistoryLimit int          `toml:"history_limit"` // Max render history entries kept (oldest pruned)
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// RenderConfig controls how worker processes are built and supervised
type RenderConfig struct {
	Executable    string   `toml:"executable"`     // Render engine binary path
	LogDir        string   `toml:"log_dir"`        // Per-worker log files directory (empty = in-memory only)
	CancelGrace   string   `toml:"cancel_grace"`   // e.g. "10s" - SIGTERM to SIGKILL grace period
	LaunchStagger string   `toml:"launch_stagger"` // e.g. "500ms" - delay between device process starts
	LogTailLines  int      `toml:"log_tail_lines"` // Lines of worker log returned by status queries
	ExtraArgs     []string `toml:"extra_args"`     // Pass-through arguments appended to every invocation
}

type NotifyConfig struct {
	Enabled bool   `toml:"enabled"`
	Command string `toml:"command"` // Override notification command (empty = platform default)
}

type PowerConfig struct {
	Enabled      bool `toml:"enabled"`       // Allow sleep/shutdown requests on job completion
	PreventSleep bool `toml:"prevent_sleep"` // Keep the system awake while a job is running
}

// WebSocketConfig contains configuration for the event stream
type WebSocketConfig struct {
	AllowedEvents    []string `toml:"allowed_events"`    // Whitelist of event types to broadcast (empty = all)
	ProgressInterval string   `toml:"progress_interval"` // Min interval between worker_progress broadcasts
}

// NewDefaultConfig returns the baseline configuration before file/env/flag overrides
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8321,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/fornax",
			},
			HistoryLimit: 20,
		},
		Render: RenderConfig{
			Executable:    "blender",
			CancelGrace:   "10s",
			LaunchStagger: "0s",
			LogTailLines:  40,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Power: PowerConfig{
			Enabled:      false,
			PreventSleep: true,
		},
		WebSocket: WebSocketConfig{
			ProgressInterval: "500ms",
		},
	}
}

// LoadFromFiles loads configuration by merging defaults with one or more TOML files.
// Later files override earlier ones; environment variables override files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies FORNAX_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FORNAX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("FORNAX_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("FORNAX_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("FORNAX_RENDER_EXECUTABLE"); v != "" {
		config.Render.Executable = v
	}
	if v := os.Getenv("FORNAX_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("FORNAX_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// CancelGraceDuration returns the parsed cancel grace period with a safe default
func (r *RenderConfig) CancelGraceDuration() time.Duration {
	d, err := time.ParseDuration(r.CancelGrace)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// LaunchStaggerDuration returns the parsed launch stagger delay
func (r *RenderConfig) LaunchStaggerDuration() time.Duration {
	d, err := time.ParseDuration(r.LaunchStagger)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ProgressIntervalDuration returns the parsed progress broadcast interval
func (w *WebSocketConfig) ProgressIntervalDuration() time.Duration {
	d, err := time.ParseDuration(w.ProgressInterval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
