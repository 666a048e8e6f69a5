// Package logging builds the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout.  Outside of dev the output is
// JSON so it can be shipped as-is; in dev it is the human-readable text
// formatter.  An unknown level falls back to info.
func New(env, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if strings.EqualFold(env, "dev") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Component tags every entry with the name of the emitting component.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	return l.WithField("component", name)
}

// Discard returns an entry that drops everything.  Tests and optional
// collaborators use it instead of nil checks.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
