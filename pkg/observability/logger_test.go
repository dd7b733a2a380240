package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: slog.LevelInfo, Output: &buf, Service: "estatecrm", Version: "1.2.0"})

	logger.Info("subscription activated", "subscription_id", "s-1")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "subscription activated")
	assert.Contains(t, out, "subscription_id=s-1")
	assert.Contains(t, out, "service=estatecrm")
	assert.Contains(t, out, "version=1.2.0")
	assert.NotContains(t, out, "hidden")
}

func TestNewLogger_JSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: slog.LevelInfo, Format: LogFormatJSON, Output: &buf})

	ctx := NewRequestContext(context.Background(), "corr-42")
	ctx = WithOperation(ctx, "sweep")
	ctx = WithActor(ctx, "admin-7")
	logger.With("component", "sweeper").InfoContext(ctx, "sweep finished", "expired", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep finished", entry["msg"])
	assert.Equal(t, "corr-42", entry[CorrelationIDKey])
	assert.NotEmpty(t, entry[RequestIDKey])
	assert.Equal(t, "sweep", entry[OperationKey])
	assert.Equal(t, "admin-7", entry[ActorKey])
	assert.Equal(t, "sweeper", entry["component"])
	assert.EqualValues(t, 3, entry["expired"])
}

func TestNewLogger_GroupKeepsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: slog.LevelInfo, Output: &buf})

	logger.WithGroup("outbox").InfoContext(WithCorrelationID(context.Background(), "c-9"), "relayed", "count", 2)

	assert.Contains(t, buf.String(), "outbox.count=2")
	assert.Contains(t, buf.String(), "c-9")
}

func TestConfigForEnv(t *testing.T) {
	dev := ConfigForEnv("development", "")
	assert.Equal(t, slog.LevelDebug, dev.Level)
	assert.Equal(t, LogFormatText, dev.Format)
	assert.Equal(t, os.Stderr, dev.Output)

	prod := ConfigForEnv("production", "")
	assert.Equal(t, slog.LevelInfo, prod.Level)
	assert.Equal(t, LogFormatJSON, prod.Format)
	assert.True(t, prod.AddSource)

	assert.Equal(t, slog.LevelWarn, ConfigForEnv("production", "warn").Level)
	assert.Equal(t, slog.LevelInfo, ConfigForEnv("staging", "").Level)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")

	logger := LoggerFromEnv()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))

	ctx = WithCorrelationID(ctx, "")
	assert.Len(t, CorrelationIDFromContext(ctx), 36)

	ctx = NewRequestContext(context.Background(), "")
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))
	assert.NotEqual(t, CorrelationIDFromContext(ctx), RequestIDFromContext(ctx))
}
