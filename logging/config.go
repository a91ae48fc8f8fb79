package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Environment types
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// ApplyEnvironmentDefaults normalises config and fills unset fields from the
// defaults of its Environment.
func ApplyEnvironmentDefaults(config Config) Config {
	config.Level = strings.ToLower(config.Level)
	config.Format = strings.ToLower(config.Format)
	config.Environment = strings.ToLower(config.Environment)
	if config.Environment == "" {
		config.Environment = EnvProduction
	}

	switch config.Environment {
	case EnvProduction:
		// JSON, info, no source info
		if config.Format == "" {
			config.Format = "json"
		}
		if config.Level == "" {
			config.Level = "info"
		}
		config.AddSource = false

	case EnvTest:
		if config.Format == "" {
			config.Format = "text"
		}
		if config.Level == "" {
			config.Level = "debug"
		}
		config.AddSource = false

	case EnvDevelopment:
		if config.Format == "" {
			config.Format = "text"
		}
		if config.Level == "" {
			config.Level = "debug"
		}
		config.AddSource = true

	default:
		if config.Format == "" {
			config.Format = DefaultConfig.Format
		}
		if config.Level == "" {
			config.Level = DefaultConfig.Level
		}
	}

	return config
}

// CustomLevel defines a custom log level between existing ones
type CustomLevel slog.Level

// Custom levels between the standard ones
const (
	LevelTrace CustomLevel = CustomLevel(slog.LevelDebug - 4) // Even more verbose than debug
	LevelFatal CustomLevel = CustomLevel(slog.LevelError + 4) // More severe than error
)

// String returns the string representation of the custom level
func (l CustomLevel) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelFatal:
		return "FATAL"
	default:
		return slog.Level(l).String()
	}
}

// Trace logs below debug level.
func (l *Logger) Trace(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.Level(LevelTrace), msg, toArgs(attrs)...)
}

// Fatal logs at fatal level and exits the program
func Fatal(msg string, attrs ...slog.Attr) {
	Default().Log(context.Background(), slog.Level(LevelFatal), msg, toArgs(attrs)...)
	os.Exit(1)
}

// DynamicLevelVar allows changing log level at runtime
type DynamicLevelVar struct {
	*slog.LevelVar
}

// NewDynamicLevelVar creates a new dynamic level variable
func NewDynamicLevelVar(initialLevel slog.Level) *DynamicLevelVar {
	levelVar := &slog.LevelVar{}
	levelVar.Set(initialLevel)
	return &DynamicLevelVar{LevelVar: levelVar}
}

// SetFromString sets the level from a string representation
func (d *DynamicLevelVar) SetFromString(level string) bool {
	switch strings.ToLower(level) {
	case "trace":
		d.Set(slog.Level(LevelTrace))
	case "debug":
		d.Set(slog.LevelDebug)
	case "info":
		d.Set(slog.LevelInfo)
	case "warn", "warning":
		d.Set(slog.LevelWarn)
	case "error":
		d.Set(slog.LevelError)
	case "fatal":
		d.Set(slog.Level(LevelFatal))
	default:
		return false
	}
	return true
}

// NewLoggerWithDynamicLevel creates a stdout logger whose level can change at runtime.
func NewLoggerWithDynamicLevel(config Config) (*Logger, *DynamicLevelVar) {
	levelVar := NewDynamicLevelVar(ParseLevel(config.Level))

	opts := &slog.HandlerOptions{
		Level:     levelVar.LevelVar,
		AddSource: config.AddSource,
	}

	logger := &Logger{Logger: slog.New(newHandler(config, os.Stdout, opts))}
	return logger, levelVar
}
