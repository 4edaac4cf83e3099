// Package logger wraps zerolog behind a small leveled call-site shape
// (Debug/Info/Warn/Error with printf-style formatting), so every component
// in this module logs consistently while getting zerolog's structured
// output.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a thin, leveled wrapper around a zerolog.Logger.
type Logger struct {
	z zerolog.Logger
}

// New creates a Logger writing to out at the given level, tagging every
// event with component.
func New(out io.Writer, level zerolog.Level, component string) *Logger {
	z := zerolog.New(out).With().Timestamp().Str("component", component).Logger().Level(level)
	return &Logger{z: z}
}

// Default returns a Logger writing human-readable output to stderr at info
// level.
func Default() *Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05.000"}
	return &Logger{z: zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)}
}

// With returns a child Logger annotated with additional structured fields.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) SetLevel(level zerolog.Level) { l.z = l.z.Level(level) }

func (l *Logger) Debug(format string, args ...interface{}) { l.z.Debug().Msgf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.z.Info().Msgf(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.z.Warn().Msgf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.z.Error().Msgf(format, args...) }
