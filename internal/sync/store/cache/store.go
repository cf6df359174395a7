// Package cache implements the persistent lookup cache for registry
// resolutions. Caching is an optimization, not a correctness requirement:
// Get reports storage failures as a miss and Set swallows them, so a broken
// cache only costs a remote re-resolution.
package cache

import (
	"context"

	"fieldsync/internal/sync/models"
)

// Store is the lookup-cache port. Entries are unique per (scope, kind, key),
// upserted on overwrite, and never expire.
type Store interface {
	// Get returns the cached value and whether it was present. Storage
	// failures are logged by the implementation and reported as absent.
	Get(ctx context.Context, scopeID string, kind models.CacheKind, key string) (string, bool)

	// Set upserts a value. Storage failures are logged and swallowed.
	Set(ctx context.Context, scopeID string, kind models.CacheKind, key, value string)
}
