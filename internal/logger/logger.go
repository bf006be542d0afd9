// Package logger provides the process-wide structured logger.
//
// It wraps a zap core that writes error-and-above to stderr and everything
// else to stdout, either as JSON (for log shippers) or in console form for
// local runs. Package-level helpers keep call sites short:
//
//	logger.Infof("[train] epoch %d loss=%.4f", epoch, loss)
//	logger.Warnw("interaction log write failed", "err", err)
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	std = newLogger(zapcore.InfoLevel, "console")
)

// Init replaces the global logger. level is one of debug, info, warn, error;
// format is "json" or "console". Unknown values fall back to info/console.
func Init(level, format string) {
	l := newLogger(ParseLevel(level), format)
	mu.Lock()
	old := std
	std = l
	mu.Unlock()
	_ = old.Sync()
}

// ParseLevel converts a level name into a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newLogger(min zapcore.Level, format string) *zap.SugaredLogger {
	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && lvl >= min
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= min
	})

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	var encoder zapcore.Encoder
	if strings.EqualFold(format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), isErrorLevel),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), isInfoLevel),
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// L returns the current global logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Sync flushes buffered entries.
func Sync() { _ = L().Sync() }

func Debugf(format string, args ...any) { L().Debugf(format, args...) }
func Infof(format string, args ...any)  { L().Infof(format, args...) }
func Warnf(format string, args ...any)  { L().Warnf(format, args...) }
func Errorf(format string, args ...any) { L().Errorf(format, args...) }

func Debugw(msg string, keysAndValues ...any) { L().Debugw(msg, keysAndValues...) }
func Infow(msg string, keysAndValues ...any)  { L().Infow(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...any)  { L().Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...any) { L().Errorw(msg, keysAndValues...) }
