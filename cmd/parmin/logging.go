package main

import (
	"log/slog"
	"os"
	"strings"
)

// envLogLevel overrides the log level: debug, info, warn or error.
const envLogLevel = "PARMIN_LOG_LEVEL"

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if v, ok := os.LookupEnv(envLogLevel); ok {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.ToUpper(v))); err == nil {
			level = l
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
