// Package logging builds the zap logger used throughout armsim.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level, encoding and destination.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is console or json.
	Format string `yaml:"format"`
	// Output is stdout, stderr, discard or a file path.
	Output string `yaml:"output"`
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: "stderr"}
}

// Validate checks that the level and format are known.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch c.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q (expected console or json)", c.Format)
	}
	if c.Output == "" {
		return fmt.Errorf("log output must not be empty")
	}
	return nil
}

// Terminal reports whether the logger writes to the process's terminal streams.
func (c Config) Terminal() bool {
	return c.Output == "stdout" || c.Output == "stderr"
}

// NewZapConfig returns the zap configuration for c, without stacktraces and
// with ISO8601 timestamps.
func NewZapConfig(c Config) (zap.Config, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parse log level: %w", err)
	}

	encodeLevel := zapcore.CapitalLevelEncoder
	if c.Format == "console" && c.Terminal() {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: c.Format,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{c.Output},
		ErrorOutputPaths:  []string{"stderr"},
	}, nil
}

// New builds a named logger from c. Output "discard" returns a no-op logger.
func New(c Config, name string) (*zap.Logger, error) {
	if strings.EqualFold(c.Output, "discard") {
		return zap.NewNop(), nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	zc, err := NewZapConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named(name), nil
}
