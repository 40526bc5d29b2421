package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/viper"
)

// setupLogging installs the process-wide slog handler: colorized tint
// output for interactive use, line-delimited JSON when env is prod. The
// stdlib log package is routed into the same handler so noisy
// dependencies share the format.
func setupLogging() {
	level := slogLevel(viper.GetString("log.level"))

	var handler slog.Handler
	switch strings.ToLower(viper.GetString("env")) {
	case "prod", "production":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		})
	}

	slog.SetDefault(slog.New(handler))

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo).Writer())
}

// slogLevel parses a level name, accepting anything slog itself accepts
// ("debug", "warn", "INFO", even "error+2"). Unknown input means info.
func slogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
