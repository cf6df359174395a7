package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fieldsync/internal/sync/models"
	dErrors "fieldsync/pkg/domainerrors"
	"fieldsync/pkg/testutil"
)

type fakeSyncService struct {
	lastReq     *models.SyncRequest
	lastBundles []models.HouseholdBundle
	resp        *models.SyncResponse
	err         error
}

func (f *fakeSyncService) SyncBatch(_ context.Context, req *models.SyncRequest, bundles []models.HouseholdBundle) (*models.SyncResponse, error) {
	f.lastReq = req
	f.lastBundles = bundles
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeBundleSource struct {
	bundles []models.HouseholdBundle
	err     error
	calls   int
}

func (f *fakeBundleSource) FetchBundles(_ context.Context, _, _ int, _ string) ([]models.HouseholdBundle, error) {
	f.calls++
	return f.bundles, f.err
}

type HandlerSuite struct {
	suite.Suite
	service *fakeSyncService
	source  *fakeBundleSource
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeSyncService{
		resp: &models.SyncResponse{
			Success: true,
			RunID:   uuid.NewString(),
			Year:    2026,
			Month:   7,
		},
	}
	s.source = &fakeBundleSource{
		bundles: []models.HouseholdBundle{{
			SiteID:       uuid.New(),
			HouseNumber:  "H-042",
			HealthCenter: "Mwanza HC",
			Session:      &models.SessionRecord{ID: uuid.New(), CollectedAt: time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)},
		}},
	}
	s.router = chi.NewRouter()
	New(s.service, s.source, testutil.Logger()).Register(s.router)
}

func (s *HandlerSuite) TestSyncReturnsBatchResponse() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/sync/registry", map[string]any{
		"year":     2026,
		"month":    7,
		"district": "Mwanza",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[models.SyncResponse](s.T(), rr)
	s.True(resp.Success)
	s.Equal(2026, resp.Year)

	s.Require().NotNil(s.service.lastReq)
	s.Equal("Mwanza", s.service.lastReq.District)
	s.Len(s.service.lastBundles, 1)
}

func (s *HandlerSuite) TestMalformedBodyIsBadRequest() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/sync/registry", nil)
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
	s.Zero(s.source.calls, "bundle source must not be hit for a malformed body")
}

func (s *HandlerSuite) TestInvalidScopeIsRejectedBeforeFetch() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/sync/registry", map[string]any{
		"year":     2026,
		"month":    13,
		"district": "Mwanza",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
	s.Zero(s.source.calls)
}

func (s *HandlerSuite) TestBundleSourceFailureIsInternal() {
	s.source.err = dErrors.New(dErrors.CodeInternal, "db down")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/sync/registry", map[string]any{
		"year":     2026,
		"month":    7,
		"district": "Mwanza",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusInternalServerError, rr.Code)
}

func (s *HandlerSuite) TestRegistryOutageIsUnavailable() {
	s.service.err = dErrors.New(dErrors.CodeUnavailable, "fetch element map")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/sync/registry", map[string]any{
		"year":     2026,
		"month":    7,
		"district": "Mwanza",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusServiceUnavailable, rr.Code)
}
