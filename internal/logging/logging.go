// Package logging configures the process zerolog logger and routes the
// slog output of the drawing library into it.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gogpu/gg"
	"github.com/rs/zerolog"
)

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO", "":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New returns a console logger writing to w at the given level.
func New(w io.Writer, level string, noColor bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// Setup builds the process logger and installs it as the gg logger.
func Setup(w io.Writer, level string, noColor bool) zerolog.Logger {
	l := New(w, level, noColor)
	gg.SetLogger(slog.New(NewHandler(l.With().Str("component", "gg").Logger())))
	l.Debug().Str("level", l.GetLevel().String()).Msg("logging initialized")
	return l
}
