package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"fieldsync/internal/sync/models"
	"fieldsync/pkg/requestcontext"
)

// PostgresStore persists cache entries in PostgreSQL. The table carries a
// unique (scope_id, kind, cache_key) primary key; writes are plain upserts.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgres constructs a PostgreSQL-backed lookup cache.
func NewPostgres(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, scopeID string, kind models.CacheKind, key string) (string, bool) {
	query := `
		SELECT value FROM registry_lookup_cache
		WHERE scope_id = $1 AND kind = $2 AND cache_key = $3
	`
	var value string
	err := s.db.QueryRowContext(ctx, query, scopeID, string(kind), key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "cache read failed, falling back to remote",
				"kind", string(kind),
				"key", key,
				"error", err.Error(),
			)
		}
		return "", false
	}
	return value, true
}

func (s *PostgresStore) Set(ctx context.Context, scopeID string, kind models.CacheKind, key, value string) {
	query := `
		INSERT INTO registry_lookup_cache (scope_id, kind, cache_key, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope_id, kind, cache_key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	now := requestcontext.Now(ctx)
	if _, err := s.db.ExecContext(ctx, query, scopeID, string(kind), key, value, now); err != nil {
		s.logger.WarnContext(ctx, "cache write failed",
			"kind", string(kind),
			"key", key,
			"error", err.Error(),
		)
	}
}
