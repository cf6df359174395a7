//go:build integration

package bundle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fieldsync/internal/sync/store/bundle"
	"fieldsync/internal/sync/store/session"
	"fieldsync/pkg/testutil/containers"
)

type PostgresBundleSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *bundle.PostgresStore
}

func TestPostgresBundleSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresBundleSuite))
}

func (s *PostgresBundleSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = bundle.NewPostgres(s.postgres.DB)
}

func (s *PostgresBundleSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"specimen_groups", "surveillance_forms", "collection_sessions", "sites"))
}

func (s *PostgresBundleSuite) insertSite(houseNumber, healthCenter, district string) uuid.UUID {
	id := uuid.New()
	_, err := s.postgres.DB.Exec(
		`INSERT INTO sites (id, house_number, health_center, district) VALUES ($1, $2, $3, $4)`,
		id, houseNumber, healthCenter, district)
	s.Require().NoError(err)
	return id
}

func (s *PostgresBundleSuite) insertSession(siteID uuid.UUID, collectedAt time.Time, status string) uuid.UUID {
	id := uuid.New()
	_, err := s.postgres.DB.Exec(
		`INSERT INTO collection_sessions (id, site_id, collected_at, officer_name, status)
		 VALUES ($1, $2, $3, 'J. Mushi', $4)`,
		id, siteID, collectedAt, status)
	s.Require().NoError(err)
	return id
}

func (s *PostgresBundleSuite) insertForm(sessionID uuid.UUID, bednetType string) {
	_, err := s.postgres.DB.Exec(
		`INSERT INTO surveillance_forms (session_id, bednets_present, bednet_count, bednet_type)
		 VALUES ($1, TRUE, 3, $2)`,
		sessionID, bednetType)
	s.Require().NoError(err)
}

func (s *PostgresBundleSuite) insertSpecimens(sessionID uuid.UUID, taxon string, fed, unfed int) {
	_, err := s.postgres.DB.Exec(
		`INSERT INTO specimen_groups (id, session_id, taxon, fed, unfed)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), sessionID, taxon, fed, unfed)
	s.Require().NoError(err)
}

func (s *PostgresBundleSuite) TestFetchBundlesScopesToMonthAndDistrict() {
	ctx := context.Background()
	siteID := s.insertSite("H-042", "Mwanza HC", "Mwanza")
	otherDistrict := s.insertSite("H-001", "Arusha HC", "Arusha")

	inMonth := s.insertSession(siteID, time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC), "pending")
	s.insertSession(siteID, time.Date(2026, 6, 30, 9, 0, 0, 0, time.UTC), "pending")
	s.insertSession(otherDistrict, time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC), "pending")
	s.insertForm(inMonth, "Pyrethroid")

	bundles, err := s.store.FetchBundles(ctx, 2026, 7, "Mwanza")
	s.Require().NoError(err)
	s.Require().Len(bundles, 1)

	b := bundles[0]
	s.Equal(siteID, b.SiteID)
	s.Equal("H-042", b.HouseNumber)
	s.Equal("Mwanza HC", b.HealthCenter)
	s.Require().NotNil(b.Session)
	s.Equal(inMonth, b.Session.ID)
	s.Equal([]uuid.UUID{inMonth}, b.SessionIDs)
	s.Require().NotNil(b.Form)
	s.Equal("Pyrethroid", b.Form.BednetType)
}

func (s *PostgresBundleSuite) TestNewestSessionIsCanonicalAndSpecimensSum() {
	ctx := context.Background()
	siteID := s.insertSite("H-042", "Mwanza HC", "Mwanza")

	early := s.insertSession(siteID, time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC), "pending")
	late := s.insertSession(siteID, time.Date(2026, 7, 20, 9, 0, 0, 0, time.UTC), "pending")
	s.insertForm(early, "Pyrethroid")
	s.insertForm(late, "Chlorfenapyr")
	s.insertSpecimens(early, "An. gambiae", 2, 1)
	s.insertSpecimens(late, "An. gambiae", 3, 0)

	bundles, err := s.store.FetchBundles(ctx, 2026, 7, "Mwanza")
	s.Require().NoError(err)
	s.Require().Len(bundles, 1)

	b := bundles[0]
	s.Equal(late, b.Session.ID)
	s.Equal("Chlorfenapyr", b.Form.BednetType)
	s.Len(b.SessionIDs, 2)

	s.Require().Len(b.Specimens, 1)
	s.Equal("An. gambiae", b.Specimens[0].Taxon)
	s.Equal(5, b.Specimens[0].Fed)
	s.Equal(1, b.Specimens[0].Unfed)
}

func (s *PostgresBundleSuite) TestSubmittedSessionsAreExcluded() {
	ctx := context.Background()
	siteID := s.insertSite("H-042", "Mwanza HC", "Mwanza")
	sessionID := s.insertSession(siteID, time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC), "pending")

	sessions := session.NewPostgres(s.postgres.DB)
	s.Require().NoError(sessions.MarkSubmitted(ctx, []uuid.UUID{sessionID}))

	bundles, err := s.store.FetchBundles(ctx, 2026, 7, "Mwanza")
	s.Require().NoError(err)
	s.Empty(bundles)
}
