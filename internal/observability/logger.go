// Package observability contains logging setup shared by the commands.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap.Logger writing to stderr. level is one of debug,
// info, warn, error (default info); format is "json" or "console" (default
// console).
func NewLogger(level, format string) *zap.Logger {
	atomic := zap.NewAtomicLevel()
	switch strings.ToLower(level) {
	case "debug":
		atomic.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		atomic.SetLevel(zap.WarnLevel)
	case "error":
		atomic.SetLevel(zap.ErrorLevel)
	default:
		atomic.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomic)
	return zap.New(core)
}
