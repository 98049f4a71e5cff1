/*
Package logx provides a structured logging wrapper based on zerolog.

It initializes the process-wide logger from the application configuration (console output
in development, JSON elsewhere), hands out component-scoped child loggers, and offers
key/value helpers for the Debug, Info, Warn, Error and Fatal levels.
*/
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls how InitGlobalLogger builds the global logger.
type Options struct {
	// Development switches to the human-readable console writer.
	Development bool

	// Level is a zerolog level name ("debug", "info", "warn", ...). Empty means
	// debug in development and info otherwise.
	Level string

	// Output overrides the destination. Defaults to stderr (console) or stdout (JSON).
	Output io.Writer
}

// InitGlobalLogger replaces the global zerolog logger according to opts.
// All records carry a timestamp and caller information.
func InitGlobalLogger(opts Options) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := opts.Output
	if out == nil {
		out = os.Stdout
		if opts.Development {
			out = os.Stderr
		}
	}

	if opts.Development {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.Output != nil,
			TimeFormat: time.RFC3339,
		}
	}

	level := zerolog.InfoLevel
	if opts.Development {
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}

	log.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Logger returns a pointer to the global zerolog.Logger instance.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// checkFields validates that the variadic fields parameter has an even number (key-value pairs).
// An odd count is reported and the fields are dropped so zerolog does not panic.
func checkFields(level string, fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msgf("logx %s call received an odd number of fields: %v. Fields ignored.", level, fields)
		return nil
	}
	return fields
}

// Debug records a message at the Debug level with optional key/value fields.
func Debug(msg string, fields ...any) {
	fields = checkFields("Debug", fields)

	Logger().Debug().
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Info records a message at the Info level with optional key/value fields.
func Info(msg string, fields ...any) {
	fields = checkFields("Info", fields)

	Logger().Info().
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Warn records a message at the Warn level with optional key/value fields.
func Warn(msg string, fields ...any) {
	fields = checkFields("Warn", fields)

	Logger().Warn().
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Error records err and a message at the Error level with optional key/value fields.
func Error(err error, msg string, fields ...any) {
	fields = checkFields("Error", fields)

	Logger().Error().
		Err(err).
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}

// Fatal records err and a message at the Fatal level, then exits the process.
func Fatal(err error, msg string, fields ...any) {
	fields = checkFields("Fatal", fields)

	Logger().Fatal().
		Err(err).
		Fields(fields).
		CallerSkipFrame(1).
		Msg(msg)
}
