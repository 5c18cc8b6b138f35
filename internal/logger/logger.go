// Package logger builds the zap loggers used across the service
package logger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component
const (
	FieldSessionID = "session_id"
	FieldOwnerID   = "owner_id"
	FieldComponent = "component"
)

// Options selects the log level and encoding
type Options struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// New builds a logger writing to stderr. Level is one of debug, info, warn
// or error; empty means info.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encoding := "console"
	if opts.JSON {
		encoding = "json"
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			NameKey: "logger",

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// SessionFields identifies a session in log entries. A nil owner is omitted.
func SessionFields(id, owner uuid.UUID) []zap.Field {
	fields := []zap.Field{zap.String(FieldSessionID, id.String())}
	if owner != uuid.Nil {
		fields = append(fields, zap.String(FieldOwnerID, owner.String()))
	}
	return fields
}

// Named returns logger scoped to a component, defaulting to a no-op logger
// when logger is nil
func Named(logger *zap.Logger, component string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.Named(component).With(zap.String(FieldComponent, component))
}
