package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDatabase is used when neither --db nor the config file names one.
const DefaultDatabase = "sqlundo.db"

// Config is the optional YAML configuration file. Command-line flags take
// precedence over every field.
type Config struct {
	Database   string      `yaml:"database"`
	GroupLimit *int64      `yaml:"group_limit"`
	Log        LogConfig   `yaml:"log"`
	Serve      ServeConfig `yaml:"serve"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error. Default: warn
	Format string `yaml:"format"` // text or json. Default: text
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoadConfig reads and validates a config file.
// Unknown keys are errors so typos do not silently fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid config: log.format %q must be text or json", cfg.Log.Format)
	}

	return &cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q must be debug, info, warn or error", s)
	}
}

// newLogger builds the process logger. --verbose lowers the level to debug.
// Logs always go to w (stderr) so they never mix with command output.
func newLogger(cfg LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
