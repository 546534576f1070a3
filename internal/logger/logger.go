// Package logger builds the service-wide slog.Logger from environment
// configuration. JSON output is the default so log aggregation keeps
// working when someone forgets to set LOG_FORMAT in production.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is parsed from the environment by the config package.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`   // debug, info, warn, error
	Format string `env:"LOG_FORMAT" envDefault:"json"`  // json or text
	Output io.Writer
}

// New creates a configured slog.Logger with static service attributes.
// Unknown levels fall back to info and unknown formats to JSON rather
// than failing startup over a typo in an env var.
func New(cfg Config, service, environment string) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("env", environment),
	})

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
