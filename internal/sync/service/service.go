// Package service drives registry synchronization: it walks a batch of
// household bundles, reconciles each against the local ledger and the remote
// registry, and reports an itemized outcome per household.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/platform/config"
	"fieldsync/internal/sync/mapping"
	"fieldsync/internal/sync/metrics"
	"fieldsync/internal/sync/models"
	"fieldsync/internal/sync/registry"
	"fieldsync/internal/sync/store/ledger"
	"fieldsync/internal/sync/store/session"
	dErrors "fieldsync/pkg/domainerrors"
)

// BundleSource supplies the per-household bundles for a batch scope. The
// aggregation query and site allow-listing live outside this subsystem; the
// source hands over only bundles the requester may act on.
type BundleSource interface {
	FetchBundles(ctx context.Context, year, month int, district string) ([]models.HouseholdBundle, error)
}

// Service is the sync orchestrator. It is the only component with side
// effects on both the local store and the registry.
type Service struct {
	registry registry.Client
	ledger   ledger.Store
	sessions session.Store

	programID string
	scopeID   string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs the orchestrator.
func New(
	client registry.Client,
	ledgerStore ledger.Store,
	sessionStore session.Store,
	cfg config.RegistryConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("registry client is required")
	}
	if ledgerStore == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if sessionStore == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		registry:  client,
		ledger:    ledgerStore,
		sessions:  sessionStore,
		programID: cfg.ProgramID,
		scopeID:   cfg.StageID,
		logger:    logger,
		metrics:   m,
	}, nil
}

// SyncBatch runs one batch. Per-household failures are captured into the
// result list; only request validation and element-map fetch failures abort
// the whole batch.
func (s *Service) SyncBatch(ctx context.Context, req *models.SyncRequest, bundles []models.HouseholdBundle) (*models.SyncResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()

	// Without the element map no household can be mapped, so this failure
	// is batch-fatal.
	elements, err := s.registry.FetchElementMap(ctx, s.scopeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "fetch element map")
	}

	overrides := req.Overrides()
	summary := models.BatchSummary{TotalHouseholds: len(bundles)}
	results := make([]models.ResultItem, 0, len(bundles))

	for _, bundle := range bundles {
		var override *models.IRSOverride
		if o, ok := overrides[bundle.SiteID]; ok {
			override = &o
		}

		result := s.syncHousehold(ctx, req, bundle, elements, override)
		s.metrics.RecordOutcome(string(result.Status))
		switch result.Status {
		case models.StatusSuccess:
			summary.SuccessfulSyncs++
		case models.StatusFailed:
			summary.FailedSyncs++
			s.logger.WarnContext(ctx, "household sync failed",
				"run_id", runID,
				"site_id", bundle.SiteID.String(),
				"house_number", bundle.HouseNumber,
				"error", result.Message,
			)
		case models.StatusSkipped:
			summary.SkippedHouseholds++
		}
		results = append(results, models.ToResultItem(result))
	}

	s.metrics.ObserveBatch(time.Since(start))
	s.logger.InfoContext(ctx, "batch sync complete",
		"run_id", runID,
		"year", req.Year,
		"month", req.Month,
		"district", req.District,
		"dry_run", req.DryRun,
		"total", summary.TotalHouseholds,
		"succeeded", summary.SuccessfulSyncs,
		"failed", summary.FailedSyncs,
		"skipped", summary.SkippedHouseholds,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &models.SyncResponse{
		Success: summary.FailedSyncs == 0,
		RunID:   runID,
		Year:    req.Year,
		Month:   req.Month,
		DryRun:  req.DryRun,
		Summary: models.SummaryResponse{
			TotalHouseholds:   summary.TotalHouseholds,
			SuccessfulSyncs:   summary.SuccessfulSyncs,
			FailedSyncs:       summary.FailedSyncs,
			SkippedHouseholds: summary.SkippedHouseholds,
		},
		Results: results,
	}, nil
}

// syncHousehold runs the per-household state machine:
// Validate -> (DryRunReport | Resolve) -> Reconcile -> Persist -> Done.
func (s *Service) syncHousehold(
	ctx context.Context,
	req *models.SyncRequest,
	bundle models.HouseholdBundle,
	elements map[string]string,
	override *models.IRSOverride,
) models.SyncResult {
	result := models.SyncResult{
		SiteID:       bundle.SiteID,
		HouseNumber:  bundle.HouseNumber,
		HealthCenter: bundle.HealthCenter,
	}

	// Validate
	if bundle.HealthCenter == "" || bundle.HouseNumber == "" {
		result.Status = models.StatusSkipped
		result.Message = "missing health center name or house number"
		return result
	}
	if bundle.Session == nil {
		result.Status = models.StatusSkipped
		result.Message = "no collection session for month"
		return result
	}

	values := mapping.Map(bundle.Session, bundle.Form, bundle.Specimens, elements, override)

	// Dry run: report the mapped payload, mutate nothing.
	if req.DryRun {
		result.Status = models.StatusSuccess
		result.Message = fmt.Sprintf("dry run: %d data values mapped", len(values))
		result.DataValuesCount = len(values)
		result.DataValues = values
		return result
	}

	// Resolve
	entity, err := s.registry.SearchTrackedEntity(ctx, bundle.HealthCenter, bundle.HouseNumber)
	if err != nil {
		result.Status = models.StatusFailed
		result.Message = fmt.Sprintf("search tracked entity: %v", err)
		return result
	}
	if entity == nil {
		result.Status = models.StatusSkipped
		result.Message = "no matching tracked entity in registry"
		return result
	}

	eventDate := bundle.Session.CollectedAt.Format("2006-01-02")
	payload := registry.EventPayload{
		Program:               s.programID,
		ProgramStage:          s.scopeID,
		OrgUnit:               entity.OrgUnitID,
		TrackedEntityInstance: entity.EntityID,
		EventDate:             eventDate,
		Status:                registry.EventStatusCompleted,
		DataValues:            toEventValues(values),
	}

	// Reconcile
	outcome, eventID, err := s.reconcile(ctx, req, bundle, entity, eventDate, payload)
	if err != nil {
		result.Status = models.StatusFailed
		result.Message = err.Error()
		return result
	}

	// Persist: sessions become terminal only after the remote write stuck.
	if err := s.sessions.MarkSubmitted(ctx, bundle.SessionIDs); err != nil {
		result.Status = models.StatusFailed
		result.Message = fmt.Sprintf("remote event %s written but marking sessions submitted failed: %v", eventID, err)
		result.EntityID = entity.EntityID
		result.EventID = eventID
		return result
	}

	result.Status = models.StatusSuccess
	result.Message = outcome.message()
	result.EntityID = entity.EntityID
	result.EventID = eventID
	result.DataValuesCount = len(values)
	result.DataValues = values
	return result
}

func toEventValues(values []models.DataValue) []registry.EventDataValue {
	out := make([]registry.EventDataValue, 0, len(values))
	for _, v := range values {
		out = append(out, registry.EventDataValue{DataElement: v.DataElementID, Value: v.Value})
	}
	return out
}
