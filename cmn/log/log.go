// Package log provides structured logging for the module using zerolog:
// a package-level logger, component-scoped children, and small
// Info/Warn/Error helpers.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger. The package's init runs Init at
// "info" level; call Init again to reconfigure it.
var Logger zerolog.Logger

type Config struct {
	Level      string // "debug", "info", "warn", "error"
	JSONOutput bool
	Output     io.Writer
}

func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.JSONOutput {
		Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
}

func init() {
	Init(Config{Level: "info"})
}

// WithComponent returns a child logger tagging every record with the
// given component name ("migration", "servicequeue", "agg", ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Rejected logs a rejected dispatchable at Warning: per the error
// handling design, business-rule rejections are expected control flow,
// not faults, so they never log at Error.
func Rejected(logger zerolog.Logger, op string, err error) {
	logger.Warn().Str("op", op).Err(err).Msg("rejected")
}

// Applied logs a successful state transition at Info.
func Applied(logger zerolog.Logger, op string, fields map[string]interface{}) {
	ev := logger.Info().Str("op", op)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("applied")
}
