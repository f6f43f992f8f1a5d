package util

import (
	"io"
	"log/slog"
	"os"

	"github.com/hugh/go-assess/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Development gets human-readable text
// at debug level; everything else gets JSON at info. When a log file is
// configured, output is also written to a size-rotated file.
func NewLogger(env string, logCfg *config.LogConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if logCfg != nil && logCfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAgeDays,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if env == "development" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

// NopLogger discards everything. Used by tests and library defaults.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
