// Package sysutil holds small process-level helpers: log level wiring and
// environment-string conveniences shared by main and config.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// SetLogLevel configures the global zerolog level from a string value
// (case-insensitive). Empty or unrecognized values fall back to info.
func SetLogLevel(lvl string) {
	if l, ok := logLevels[strings.ToLower(strings.TrimSpace(lvl))]; ok {
		zerolog.SetGlobalLevel(l)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// IsTruthy reports whether an environment variable string should be read as
// true. Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value whose trimmed form is non-empty,
// or "" when every value is blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
