package repo

import (
	"time"

	"pymata-gateway/internal/model"
)

type Repository interface {
	// OpenSession journals a newly accepted connection.
	OpenSession(id, peer string, openedAt time.Time) error

	// CloseSession records when and why a connection ended, with its counters.
	CloseSession(id string, closedAt time.Time, reason string, stats model.SessionStats) error

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(limit int) ([]model.SessionRecord, error)

	// Close closes the repository connection.
	Close() error
}
