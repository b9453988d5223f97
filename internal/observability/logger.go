// Package observability constructs the process-wide structured logger,
// mirroring the teacher's observability.CLILogger convention: a single
// package-level *zap.Logger that CLI commands and library packages log
// through directly rather than threading a logger interface everywhere.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger, initialized by Init before any
// command runs. Defaults to a no-op logger so packages that log during
// tests (where Init is never called) don't panic on a nil pointer.
var CLILogger = zap.NewNop()

// Init builds CLILogger for CLI use: console-encoded, human-readable
// output on stderr. quiet raises the level to warn so only actionable
// failures surface; verbose lowers it to debug for troubleshooting.
func Init(quiet, verbose bool) error {
	level := zapcore.InfoLevel
	switch {
	case verbose:
		level = zapcore.DebugLevel
	case quiet:
		level = zapcore.WarnLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.TimeKey = "" // CLI output doesn't need per-line timestamps
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// Sync flushes any buffered log entries. Errors from syncing stderr are
// expected on some platforms and are intentionally ignored by callers.
func Sync() error {
	return CLILogger.Sync()
}
