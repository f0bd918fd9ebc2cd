// Package logging is a thin key-value logging facade over zap, shared by
// every seedframe package. Call sites use the short form:
//
//	logging.Info("pair with host UI", "url", pairURL)
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// Init replaces the process logger. Pass debug=true for development output.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err = cfg.Build()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	mu.Lock()
	logger = l.Sugar()
	mu.Unlock()
	return nil
}

// Sync flushes buffered log entries; call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) { get().Debugw(msg, kv...) }
func Info(msg string, kv ...any)  { get().Infow(msg, kv...) }
func Warn(msg string, kv ...any)  { get().Warnw(msg, kv...) }
func Error(msg string, kv ...any) { get().Errorw(msg, kv...) }
func Fatal(msg string, kv ...any) { get().Fatalw(msg, kv...) }
