// Package logging configures the process-wide zerolog logger from the
// SEALPROXY_LOG environment variable (or an explicit config override).
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultLevel is used when SEALPROXY_LOG is unset or unrecognized.
const defaultLevel = zerolog.InfoLevel

// Configure installs a console-friendly global logger at the level named
// by override, falling back to SEALPROXY_LOG, falling back to info.
//
// SEALPROXY_LOG accepts a bare level name ("debug") or a directive of the
// form "target=level" (e.g. "sealproxy=trace"), in which case the level
// after the last '=' is used — this preserves the original tracing-style
// env var's shape without needing a full directive parser.
func Configure(override string) {
	level := override
	if level == "" {
		level = os.Getenv("SEALPROXY_LOG")
	}
	zerolog.SetGlobalLevel(parseLevel(level))

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return defaultLevel
	}
	if idx := strings.LastIndex(raw, "="); idx != -1 {
		raw = raw[idx+1:]
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return defaultLevel
	}
	return lvl
}
