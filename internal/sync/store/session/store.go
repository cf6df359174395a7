// Package session exposes the one write the sync engine performs on
// collection sessions: marking them submitted after a successful remote
// write, so they are never re-aggregated into a future batch.
package session

import (
	"context"

	"github.com/google/uuid"
)

// Store is the session-status port.
type Store interface {
	// MarkSubmitted sets the terminal "submitted" status on the given
	// sessions. Must be called only after the remote write succeeded.
	MarkSubmitted(ctx context.Context, sessionIDs []uuid.UUID) error
}
