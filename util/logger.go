// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger is a levelled printf-style front end over a logrus logger.
// Child loggers created with WithField share the underlying logrus
// instance, its output and its hooks.
type Logger struct {
	level     LogLevel
	base      *log.Logger
	entry     *log.Entry
	formatter *log.TextFormatter
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	base := log.New()
	base.SetOutput(os.Stderr)
	return newLogger(base, verbosity)
}

// NewLoggerFrom wraps an existing logrus logger, typically the host
// application's, and sets its level and formatter from verbosity.
func NewLoggerFrom(base *log.Logger, verbosity int) *Logger {
	return newLogger(base, verbosity)
}

func newLogger(base *log.Logger, verbosity int) *Logger {
	if verbosity < 0 {
		verbosity = 0
	}
	f := &log.TextFormatter{
		DisableColors:   true,
		TimestampFormat: "15:04:05.000",
	}
	l := &Logger{
		level:     LogLevel(verbosity),
		base:      base,
		entry:     log.NewEntry(base),
		formatter: f,
	}
	base.SetFormatter(f)
	base.SetLevel(logrusLevel(l.level))
	l.SetTimestamps(verbosity >= int(LogDebug)) // auto-enable timestamps in debug mode
	return l
}

// logrusLevel maps a verbosity onto the most detailed logrus level that
// should still be emitted.
func logrusLevel(v LogLevel) log.Level {
	switch {
	case v <= LogQuiet:
		return log.ErrorLevel
	case v == LogNormal:
		return log.InfoLevel
	case v == LogVerbose:
		return log.DebugLevel
	default:
		return log.TraceLevel
	}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.formatter.DisableTimestamp = !on
	l.formatter.FullTimestamp = on
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.base.SetOutput(w) }

// SetFormat selects "text" (default) or "json" output.
func (l *Logger) SetFormat(format string) error {
	switch format {
	case "", "text":
		l.base.SetFormatter(l.formatter)
	case "json":
		l.base.SetFormatter(&log.JSONFormatter{TimestampFormat: l.formatter.TimestampFormat})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return nil
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Logrus returns the underlying logrus logger, e.g. to attach hooks.
func (l *Logger) Logrus() *log.Logger { return l.base }

// WithField returns a child logger that tags every message with key=value.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := *l
	child.entry = l.entry.WithField(key, value)
	return &child
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Tracef(format, args...)
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
