// Package logx builds the process-wide zerolog logger and adapts it for
// libraries that expect other logging interfaces.
package logx

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a root logger. format "json" writes structured lines, anything
// else a human readable console stream.
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	out := w
	if !strings.EqualFold(strings.TrimSpace(format), "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	SetLevel(level)
	return zerolog.New(out).With().Timestamp().Logger()
}

// SetLevel changes the minimum level of every logger derived from New.
// Root loggers carry no level of their own, so this is what config reloads
// call.
func SetLevel(raw string) zerolog.Level {
	lvl := ParseLevel(raw, zerolog.InfoLevel)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// ParseLevel accepts zerolog level names plus "warning".
func ParseLevel(raw string, def zerolog.Level) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return def
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return lvl
}

// Component derives a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// GormLogger routes GORM's statement logger into l at warn level.
func GormLogger(l zerolog.Logger) logger.Interface {
	w := Component(l, "gorm")
	return logger.New(
		log.New(w, "", 0),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
