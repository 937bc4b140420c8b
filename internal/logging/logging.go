// Package logging builds the harness's ambient zerolog logger.
//
// The diagnostic stream that tests read (command echoes, captured stderr,
// check lines) is plain text and does not go through this logger.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sparsa/bup/internal/config"
)

// FieldRunID and friends are the structured field names shared across packages.
const (
	FieldRunID     = "run_id"
	FieldComponent = "component"
	FieldPath      = "path"
	FieldExitCode  = "exit_code"
)

// New creates a logger writing to w, configured from cfg.
// A nil cfg selects the defaults.
func New(w io.Writer, cfg *config.LogConfig) zerolog.Logger {
	level := config.DefaultLogLevel
	format := "console"
	if cfg != nil {
		if cfg.Level != "" {
			level = cfg.Level
		}
		if cfg.Format != "" {
			format = cfg.Format
		}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.WarnLevel
	}

	var zl zerolog.Logger
	if strings.ToLower(format) == "json" {
		zl = zerolog.New(w)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.TimeOnly,
		})
	}
	return zl.Level(lvl).With().Timestamp().Logger()
}

// Component returns l tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

// OrNop returns l, or a disabled logger when l is nil.
func OrNop(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
