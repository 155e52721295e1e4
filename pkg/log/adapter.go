package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogger implements badger.Logger on top of logrus.
// Badger's info chatter (compactions, value log replay) is demoted to debug
// so a scan's own Info output stays readable.
type BadgerLogger struct {
	entry *logrus.Entry
}

// NewBadgerLogger creates a new adapter
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry: entry}
}

// Errorf logs an error message
func (l *BadgerLogger) Errorf(f string, v ...interface{}) { l.entry.Errorf(trim(f), v...) }

// Warningf logs a warning message
func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(trim(f), v...) }

// Infof logs badger info messages at debug level
func (l *BadgerLogger) Infof(f string, v ...interface{}) { l.entry.Debugf(trim(f), v...) }

// Debugf logs at trace level
func (l *BadgerLogger) Debugf(f string, v ...interface{}) { l.entry.Tracef(trim(f), v...) }

// badger terminates its format strings with a newline; logrus adds its own
func trim(f string) string { return strings.TrimRight(f, "\n") }
