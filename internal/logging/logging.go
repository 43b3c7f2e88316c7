// Package logging provides the shared default logger for cartridge
// components: structured, leveled logging via logrus, silent unless a
// caller opts in with a configured *logrus.Entry.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Discard is a *logrus.Entry that drops everything. Components default to
// it so the engine is silent out of the box, matching the teacher's own
// habit of never logging from library code unless asked.
var Discard = logrus.NewEntry(newDiscardLogger())

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDefault returns log if non-nil, otherwise Discard.
func OrDefault(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		return Discard
	}
	return log
}
