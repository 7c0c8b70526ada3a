// FILE: logger.go
// Package main – Structured leveled logging for the trading engine.
//
// Mirrors the original bot's tagged log lines (log.info/log.warn/log.trade)
// but with structured fields instead of f-string interpolation, backed by
// zap's sugared logger.
package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

func initLogger() {
	level := zapcore.InfoLevel
	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a minimal logger rather than crash on config error.
		logger = zap.NewExample()
	}
	sugar = logger.Sugar()
}

func logInfo(tag, msg string, kv ...interface{}) {
	sugar.Infow(tag+" "+msg, kv...)
}
func logWarn(tag, msg string, kv ...interface{}) {
	sugar.Warnw(tag+" "+msg, kv...)
}
func logError(tag, msg string, kv ...interface{}) {
	sugar.Errorw(tag+" "+msg, kv...)
}
func logDebug(tag, msg string, kv ...interface{}) {
	sugar.Debugw(tag+" "+msg, kv...)
}
func logTrade(tag, msg string, kv ...interface{}) {
	sugar.Infow(tag+" "+msg, append([]interface{}{"kind", "trade"}, kv...)...)
}

func syncLogger() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

// init gives every package-level logXxx call a usable sugar logger from the
// moment the package loads, including in tests that never call main(). A
// later initLogger() call from main() (after .env/config load) replaces it
// with one honoring LOG_LEVEL.
func init() {
	initLogger()
}
