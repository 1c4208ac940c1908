package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/agrimarket/agrimarket-ui/config"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger on stderr, leaving stdout to command output.
func InitLogger() *slog.Logger {
	return NewLogger(os.Stderr)
}

// NewLogger builds a JSON logger on w whose level follows SetLogLevel and installs it as default.
func NewLogger(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel changes the level of loggers created by InitLogger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	SetLogLevel(cfg.SlogLevel())
	return cfg, nil
}
