// Package observability carries the logging, metrics and health plumbing
// shared by the estatecrm CLI and worker.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     slog.Level
	Format    LogFormat
	Output    io.Writer
	AddSource bool
	Service   string
	Version   string
}

// ConfigForEnv returns the logger settings for an APP_ENV value.
// Production logs JSON to stdout with source locations; everything else logs
// text to stderr. An empty level means debug in development and info elsewhere.
func ConfigForEnv(env, level string) LogConfig {
	cfg := LogConfig{
		Level:   slog.LevelInfo,
		Format:  LogFormatText,
		Output:  os.Stderr,
		Service: "estatecrm",
		Version: "dev",
	}
	if env == "production" {
		cfg.Format = LogFormatJSON
		cfg.Output = os.Stdout
		cfg.AddSource = true
	}
	if level == "" && (env == "" || env == "development") {
		level = "debug"
	}
	cfg.Level = ParseLevel(level)
	return cfg
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown values
// give info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger builds a logger that stamps service/version and copies the
// request identifiers from the context onto every record.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	var attrs []slog.Attr
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return slog.New(&contextHandler{Handler: handler.WithAttrs(attrs)})
}

// LoggerFromEnv builds the bootstrap logger before configuration is loaded.
// It reads APP_ENV, LOG_LEVEL, LOG_FORMAT and APP_VERSION.
func LoggerFromEnv() *slog.Logger {
	cfg := ConfigForEnv(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = LogFormat(format)
	}
	if version := os.Getenv("APP_VERSION"); version != "" {
		cfg.Version = version
	}
	return NewLogger(cfg)
}

// contextHandler adds correlation, request, operation and actor ids.
type contextHandler struct {
	slog.Handler
}

var contextAttrs = []struct {
	key string
	get func(context.Context) string
}{
	{CorrelationIDKey, CorrelationIDFromContext},
	{RequestIDKey, RequestIDFromContext},
	{OperationKey, OperationFromContext},
	{ActorKey, ActorFromContext},
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, a := range contextAttrs {
		if v := a.get(ctx); v != "" {
			r.AddAttrs(slog.String(a.key, v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
