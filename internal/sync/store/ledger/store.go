// Package ledger implements the local sync ledger: one row per synced
// household-month, unique on (scope, site, year, month). The ledger is the
// idempotency anchor for the sync engine and is never deleted by it.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/sync/models"
)

// Store is the sync-ledger port.
type Store interface {
	// Find returns the entry for a household-month, or sentinel.ErrNotFound.
	Find(ctx context.Context, scopeID string, siteID uuid.UUID, year, month int) (*models.LedgerEntry, error)

	// Create inserts a new entry. A concurrent create for the same
	// household-month returns sentinel.ErrConflict.
	Create(ctx context.Context, entry *models.LedgerEntry) error

	// Touch bumps last_synced_at for an existing entry.
	Touch(ctx context.Context, scopeID string, siteID uuid.UUID, year, month int, syncedAt time.Time) error
}
