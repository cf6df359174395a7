// Package handler exposes the sync endpoint over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldsync/internal/platform/middleware"
	"fieldsync/internal/sync/models"
	"fieldsync/internal/transport/http/shared"
	dErrors "fieldsync/pkg/domainerrors"
	"fieldsync/pkg/requestcontext"
)

// Service defines the interface for batch synchronization.
type Service interface {
	SyncBatch(ctx context.Context, req *models.SyncRequest, bundles []models.HouseholdBundle) (*models.SyncResponse, error)
}

// BundleSource supplies the household bundles for a batch scope.
type BundleSource interface {
	FetchBundles(ctx context.Context, year, month int, district string) ([]models.HouseholdBundle, error)
}

// Handler handles the registry sync endpoint.
type Handler struct {
	logger  *slog.Logger
	sync    Service
	bundles BundleSource
}

// New creates a new sync Handler.
func New(sync Service, bundles BundleSource, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		sync:    sync,
		bundles: bundles,
	}
}

// Register registers the sync routes with the chi router. Batches walk every
// household in a district, so the route carries a generous timeout.
func (h *Handler) Register(r chi.Router) {
	syncRouter := chi.NewRouter()
	syncRouter.Use(middleware.Recovery(h.logger))
	syncRouter.Use(middleware.RequestID)
	syncRouter.Use(middleware.Logger(h.logger))
	syncRouter.Use(middleware.Timeout(10 * time.Minute))
	syncRouter.Use(middleware.ContentTypeJSON)
	syncRouter.Post("/v1/sync/registry", h.handleSyncRegistry)

	r.Mount("/", syncRouter)
}

// handleSyncRegistry runs one batch sync for the requested month and district.
func (h *Handler) handleSyncRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid sync request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	// Reject malformed scopes before touching the store.
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid sync request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	bundles, err := h.bundles.FetchBundles(ctx, req.Year, req.Month, req.District)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load household bundles",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load household bundles"))
		return
	}

	resp, err := h.sync.SyncBatch(ctx, &req, bundles)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "batch sync failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, resp)
}
