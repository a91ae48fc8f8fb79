package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-playlist-kit/errors"
)

func TestLogger_LogErrorStructured(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	err := errors.DuplicateItem(errors.OpAddTrack, "trackA")
	logger.LogError(context.Background(), err, "mutation rejected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "mutation rejected", line["msg"])

	pe, ok := line["playlist_error"].(map[string]any)
	require.True(t, ok, "playlist_error group expected, got %v", line)
	assert.Equal(t, "DUPLICATE_ITEM", pe["kind"])
	assert.Equal(t, "add_track", pe["operation"])
	assert.Contains(t, line, "caller")
}

func TestLogger_LogErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Config{Level: "info", Format: "json"}, &buf)

	logger.LogError(context.Background(), fmt.Errorf("plain failure"), "failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "plain failure", line["error"])
}

func TestLogger_LogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Config{Level: "debug", Format: "text"}, &buf)

	err := logger.LogOperation(context.Background(), Operation("replay"), Component("engine"), func() error {
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "operation completed")
	assert.Contains(t, buf.String(), "component=engine")

	buf.Reset()
	boom := fmt.Errorf("boom")
	err = logger.LogOperation(context.Background(), Operation("replay"), Component("engine"), func() error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "operation failed")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Config{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("key", "value"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestDynamicLevel(t *testing.T) {
	_, levelVar := NewLoggerWithDynamicLevel(Config{Level: "info", Format: "text"})
	assert.Equal(t, slog.LevelInfo, levelVar.Level())

	assert.True(t, levelVar.SetFromString("debug"))
	assert.Equal(t, slog.LevelDebug, levelVar.Level())

	assert.True(t, levelVar.SetFromString("trace"))
	assert.Equal(t, slog.Level(LevelTrace), levelVar.Level())

	assert.False(t, levelVar.SetFromString("loud"))
	assert.Equal(t, slog.Level(LevelTrace), levelVar.Level())
}

func TestCustomLevelString(t *testing.T) {
	assert.Equal(t, "TRACE", LevelTrace.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "INFO", CustomLevel(slog.LevelInfo).String())
}

func TestApplyEnvironmentDefaults(t *testing.T) {
	t.Run("production defaults", func(t *testing.T) {
		cfg := ApplyEnvironmentDefaults(Config{Environment: "production"})
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "info", cfg.Level)
		assert.False(t, cfg.AddSource)
	})

	t.Run("development overrides", func(t *testing.T) {
		cfg := ApplyEnvironmentDefaults(Config{Environment: "Development", Level: "WARN"})
		assert.Equal(t, EnvDevelopment, cfg.Environment)
		assert.Equal(t, "warn", cfg.Level)
		assert.Equal(t, "text", cfg.Format)
		assert.True(t, cfg.AddSource)
	})

	t.Run("test environment", func(t *testing.T) {
		cfg := ApplyEnvironmentDefaults(Config{Environment: "test", Format: "json"})
		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "json", cfg.Format)
	})

	t.Run("empty environment is production", func(t *testing.T) {
		cfg := ApplyEnvironmentDefaults(Config{})
		assert.Equal(t, EnvProduction, cfg.Environment)
		assert.Equal(t, "json", cfg.Format)
	})
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	opts := &slog.HandlerOptions{Level: slog.Level(LevelTrace)}
	logger := &Logger{Logger: slog.New(slog.NewTextHandler(&buf, opts))}

	logger.Trace(context.Background(), "echo ignored", slog.String("op_id", "op1"))
	assert.Contains(t, buf.String(), "echo ignored")
	assert.Contains(t, buf.String(), "op_id=op1")

	buf.Reset()
	quiet := NewLoggerWithWriter(Config{Level: "debug", Format: "text"}, &buf)
	quiet.Trace(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	l := NewLoggerWithWriter(Config{Level: "info", Format: "text"}, &buf)
	SetDefault(l)
	assert.Same(t, l, Default())
	slog.Info("through slog")
	assert.Contains(t, buf.String(), "through slog")
}
