package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"HealthBot/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a zerolog.Logger from the logging config and installs it as the
// global logger.
func New(cfg config.LoggingConfig) zerolog.Logger {
	return install(cfg, os.Stdout)
}

func install(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	w := out
	if !strings.EqualFold(cfg.Format, "json") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
