// Package logging builds the process logger from the --log-level flag.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps debug|info|warn|error to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// New returns a console logger writing to w. Unknown levels log at info.
func New(level string, w io.Writer) *zerolog.Logger {
	lvl, _ := ParseLevel(level)
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	log := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &log
}

// Discard returns a logger that drops everything.
func Discard() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log *zerolog.Logger) *zerolog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
