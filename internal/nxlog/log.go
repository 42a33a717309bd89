// Package nxlog wraps logrus behind a narrow interface so the rest of
// NexusShell never imports logrus directly. No constructor elsewhere in
// the tree takes a *Logger; callers build one with New or Discard.
package nxlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of structured-logging behaviour NexusShell's
// subsystems need: leveled messages with key/value fields.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing JSON-less, human-readable lines to w at
// the given level name ("debug", "info", "warn", "error"). An empty
// level defaults to "info".
func New(w io.Writer, level string) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &Logger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "error")
}

// With returns a derived Logger carrying an additional structured field,
// e.g. log.With("plugin_id", id).Info("loaded").
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
