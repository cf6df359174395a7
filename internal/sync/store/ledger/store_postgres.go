package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fieldsync/internal/sync/models"
	"fieldsync/pkg/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore persists ledger entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, scopeID string, siteID uuid.UUID, year, month int) (*models.LedgerEntry, error) {
	query := `
		SELECT scope_id, site_id, year, month, event_id, entity_id, org_unit_id, event_date, last_synced_at
		FROM registry_sync_ledger
		WHERE scope_id = $1 AND site_id = $2 AND year = $3 AND month = $4
	`
	var entry models.LedgerEntry
	err := s.db.QueryRowContext(ctx, query, scopeID, siteID, year, month).Scan(
		&entry.ScopeID,
		&entry.SiteID,
		&entry.Year,
		&entry.Month,
		&entry.EventID,
		&entry.EntityID,
		&entry.OrgUnitID,
		&entry.EventDate,
		&entry.LastSyncedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry == nil {
		return fmt.Errorf("ledger entry is required")
	}
	query := `
		INSERT INTO registry_sync_ledger
			(scope_id, site_id, year, month, event_id, entity_id, org_unit_id, event_date, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ScopeID,
		entry.SiteID,
		entry.Year,
		entry.Month,
		entry.EventID,
		entry.EntityID,
		entry.OrgUnitID,
		entry.EventDate,
		entry.LastSyncedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("ledger entry for household-month exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, scopeID string, siteID uuid.UUID, year, month int, syncedAt time.Time) error {
	query := `
		UPDATE registry_sync_ledger
		SET last_synced_at = $5
		WHERE scope_id = $1 AND site_id = $2 AND year = $3 AND month = $4
	`
	res, err := s.db.ExecContext(ctx, query, scopeID, siteID, year, month, syncedAt)
	if err != nil {
		return fmt.Errorf("touch ledger entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch ledger entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
