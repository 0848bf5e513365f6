// Package logging builds the zap loggers used by the CLI and server.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a log level name: debug, info, warn, error.
type Level string

// Style selects the output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
	StyleNoop     Style = "noop"
)

// Config holds logger settings.
type Config struct {
	Level Level
	Style Style
}

// NewLogger creates a logger writing to stderr. Unknown levels fall back to
// info, unknown styles to terminal.
func NewLogger(cfg *Config) *zap.Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Style == StyleNoop {
		return zap.NewNop()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	switch cfg.Style {
	case StyleJSON:
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller())
}

// ParseLevel converts a level name to a zapcore level.
func ParseLevel(l Level) (zapcore.Level, error) {
	switch strings.ToLower(string(l)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", l)
	}
}
