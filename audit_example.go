package cartridge

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/archivefs/cartridge/internal/logging"
)

// LogrusAuditSink is a reference AuditSink (spec.md §6: "fire-and-forget;
// never blocks writes") that emits one structured log line per call and
// mints a fresh session token when the caller doesn't supply one.
//
// Grounded on dbm's logging conventions: a *logrus.Entry carried around
// rather than a package-level global, the same pattern cartridge.Options
// and internal/logging use throughout this module.
type LogrusAuditSink struct {
	log *logrus.Entry
}

// NewLogrusAuditSink returns an AuditSink writing through log (or the
// package default if nil).
func NewLogrusAuditSink(log *logrus.Entry) *LogrusAuditSink {
	return &LogrusAuditSink{log: logging.OrDefault(log)}
}

// Log implements AuditSink. A blank session gets a fresh UUIDv4 so every
// audit record is still correlatable even when the caller didn't track
// one.
func (s *LogrusAuditSink) Log(actor, op, resourceID, session string) {
	if session == "" {
		session = uuid.NewString()
	}
	s.log.WithFields(logrus.Fields{
		"actor":       actor,
		"op":          op,
		"resource_id": resourceID,
		"session":     session,
	}).Info("cartridge: audit")
}
