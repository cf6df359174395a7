package service

import (
	"context"
	"errors"
	"fmt"

	"fieldsync/internal/sync/models"
	"fieldsync/internal/sync/registry"
	"fieldsync/pkg/requestcontext"
	"fieldsync/pkg/sentinel"
)

// reconcileOutcome names the three ways a household-month reaches the
// registry. Kept explicit so each branch is independently testable.
type reconcileOutcome int

const (
	// outcomeResynced: ledger hit, existing remote event updated in place.
	outcomeResynced reconcileOutcome = iota
	// outcomeAdopted: ledger miss but the registry already held an event for
	// this entity and date; the orphan was updated and a ledger row written
	// to adopt it.
	outcomeAdopted
	// outcomeCreated: no ledger row and no remote event; a fresh event was
	// created.
	outcomeCreated
)

func (o reconcileOutcome) message() string {
	switch o {
	case outcomeResynced:
		return "existing event re-synced"
	case outcomeAdopted:
		return "orphaned remote event recovered"
	default:
		return "event created"
	}
}

// reconcile performs the three-way branch between local ledger state and
// remote registry state. It is the idempotency core: the ledger's unique
// (scope, site, year, month) index guarantees at most one remote event per
// household-month, and a concurrent create losing that race surfaces as a
// conflict error rather than a duplicate event.
func (s *Service) reconcile(
	ctx context.Context,
	req *models.SyncRequest,
	bundle models.HouseholdBundle,
	entity *models.TrackedEntity,
	eventDate string,
	payload registry.EventPayload,
) (reconcileOutcome, string, error) {
	entry, err := s.ledger.Find(ctx, s.scopeID, bundle.SiteID, req.Year, req.Month)
	switch {
	case err == nil:
		// Ledger hit: re-sync the event we already own.
		if err := s.registry.UpdateEvent(ctx, entry.EventID, payload); err != nil {
			return 0, "", fmt.Errorf("update event %s: %w", entry.EventID, err)
		}
		if err := s.ledger.Touch(ctx, s.scopeID, bundle.SiteID, req.Year, req.Month, requestcontext.Now(ctx)); err != nil {
			return 0, "", fmt.Errorf("touch ledger: %w", err)
		}
		return outcomeResynced, entry.EventID, nil

	case errors.Is(err, sentinel.ErrNotFound):
		// Ledger miss: check the registry directly. This defends against
		// ledger loss and out-of-band syncs.
		remote, err := s.registry.GetExistingEvent(ctx, entity.EntityID, eventDate)
		if err != nil {
			return 0, "", fmt.Errorf("query existing event: %w", err)
		}
		if remote != nil {
			return s.adoptOrphan(ctx, req, bundle, entity, eventDate, remote, payload)
		}
		return s.createFresh(ctx, req, bundle, entity, eventDate, payload)

	default:
		return 0, "", fmt.Errorf("ledger lookup: %w", err)
	}
}

func (s *Service) adoptOrphan(
	ctx context.Context,
	req *models.SyncRequest,
	bundle models.HouseholdBundle,
	entity *models.TrackedEntity,
	eventDate string,
	remote *registry.Event,
	payload registry.EventPayload,
) (reconcileOutcome, string, error) {
	if err := s.registry.UpdateEvent(ctx, remote.Event, payload); err != nil {
		return 0, "", fmt.Errorf("update orphaned event %s: %w", remote.Event, err)
	}
	if err := s.writeLedgerRow(ctx, req, bundle, entity, eventDate, remote.Event); err != nil {
		return 0, "", err
	}
	return outcomeAdopted, remote.Event, nil
}

func (s *Service) createFresh(
	ctx context.Context,
	req *models.SyncRequest,
	bundle models.HouseholdBundle,
	entity *models.TrackedEntity,
	eventDate string,
	payload registry.EventPayload,
) (reconcileOutcome, string, error) {
	eventID, err := s.registry.CreateEvent(ctx, payload)
	if err != nil {
		return 0, "", fmt.Errorf("create event: %w", err)
	}
	// No reference in the import response means nothing to anchor a ledger
	// row on; the next run will find the event via the orphan check.
	if eventID != "" {
		if err := s.writeLedgerRow(ctx, req, bundle, entity, eventDate, eventID); err != nil {
			return 0, "", err
		}
	}
	return outcomeCreated, eventID, nil
}

func (s *Service) writeLedgerRow(
	ctx context.Context,
	req *models.SyncRequest,
	bundle models.HouseholdBundle,
	entity *models.TrackedEntity,
	eventDate string,
	eventID string,
) error {
	entry := &models.LedgerEntry{
		ScopeID:      s.scopeID,
		SiteID:       bundle.SiteID,
		Year:         req.Year,
		Month:        req.Month,
		EventID:      eventID,
		EntityID:     entity.EntityID,
		OrgUnitID:    entity.OrgUnitID,
		EventDate:    eventDate,
		LastSyncedAt: requestcontext.Now(ctx),
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		// A concurrent batch won the create race for this household-month.
		if errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("household-month already synced by a concurrent run: %w", err)
		}
		return fmt.Errorf("write ledger row: %w", err)
	}
	return nil
}
