package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. Writing through it must
// never panic into a caller: every field value passed by this repo is a
// primitive, so zerolog's Msg call is effectively fail-open.
func InitLogger(level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: false}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	log.Info().Str("level", logLevel.String()).Str("format", format).Msg("logger initialized")
}

// Category tags a logger with the engine's fixed category vocabulary:
// trade, performance, balance, rpc, rotation, arbitrage.
func Category(l zerolog.Logger, category string) zerolog.Logger {
	return l.With().Str("category", category).Logger()
}

// Component returns a logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
