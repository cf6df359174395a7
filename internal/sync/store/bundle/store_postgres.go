// Package bundle assembles per-household sync bundles from the collection
// store: the site identity, its sessions for the requested month, the latest
// surveillance form, and the month's specimen counts.
package bundle

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"fieldsync/internal/sync/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FetchBundles loads every household in the district with at least one
// pending collection session in the given month. The newest session is the
// bundle's canonical session; specimen counts are summed across the month.
func (s *PostgresStore) FetchBundles(ctx context.Context, year, month int, district string) ([]models.HouseholdBundle, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	sessions, order, err := s.loadSessions(ctx, from, to, district)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	sessionIDs := make([]uuid.UUID, 0)
	for _, siteID := range order {
		for _, session := range sessions[siteID].sessions {
			sessionIDs = append(sessionIDs, session.ID)
		}
	}

	var (
		forms     map[uuid.UUID]*models.SurveillanceForm
		specimens map[uuid.UUID]map[string]*models.SpecimenGroupCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		forms, err = s.loadForms(gctx, sessionIDs)
		return err
	})
	g.Go(func() error {
		var err error
		specimens, err = s.loadSpecimens(gctx, sessionIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundles := make([]models.HouseholdBundle, 0, len(order))
	for _, siteID := range order {
		site := sessions[siteID]
		bundle := models.HouseholdBundle{
			SiteID:       siteID,
			HouseNumber:  site.houseNumber,
			HealthCenter: site.healthCenter,
		}
		for _, session := range site.sessions {
			session := session
			bundle.SessionIDs = append(bundle.SessionIDs, session.ID)
			if bundle.Session == nil {
				// Sessions arrive newest first.
				bundle.Session = &session
				bundle.Form = forms[session.ID]
			}
		}
		bundle.Specimens = mergeSpecimens(site.sessions, specimens)
		bundles = append(bundles, bundle)
	}
	return bundles, nil
}

type siteSessions struct {
	houseNumber  string
	healthCenter string
	sessions     []models.SessionRecord
}

func (s *PostgresStore) loadSessions(ctx context.Context, from, to time.Time, district string) (map[uuid.UUID]*siteSessions, []uuid.UUID, error) {
	query := `
		SELECT st.id, st.house_number, st.health_center,
		       cs.id, cs.collected_at, cs.officer_name, cs.officer_title,
		       cs.collection_method, cs.people_in_house
		FROM sites st
		JOIN collection_sessions cs ON cs.site_id = st.id
		WHERE st.district = $1
		  AND cs.collected_at >= $2 AND cs.collected_at < $3
		  AND cs.status = 'pending'
		ORDER BY st.id, cs.collected_at DESC`

	rows, err := s.db.QueryContext(ctx, query, district, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("query collection sessions: %w", err)
	}
	defer rows.Close()

	sites := make(map[uuid.UUID]*siteSessions)
	var order []uuid.UUID
	for rows.Next() {
		var (
			siteID       uuid.UUID
			houseNumber  string
			healthCenter string
			session      models.SessionRecord
		)
		if err := rows.Scan(
			&siteID, &houseNumber, &healthCenter,
			&session.ID, &session.CollectedAt, &session.OfficerName, &session.OfficerTitle,
			&session.CollectionMethod, &session.PeopleInHouse,
		); err != nil {
			return nil, nil, fmt.Errorf("scan collection session: %w", err)
		}
		site, ok := sites[siteID]
		if !ok {
			site = &siteSessions{houseNumber: houseNumber, healthCenter: healthCenter}
			sites[siteID] = site
			order = append(order, siteID)
		}
		site.sessions = append(site.sessions, session)
	}
	return sites, order, rows.Err()
}

func (s *PostgresStore) loadForms(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]*models.SurveillanceForm, error) {
	query := `
		SELECT session_id, bednets_present, bednet_count, slept_under_bednet,
		       bednet_type, bednet_brand, irs_conducted, irs_insecticide, irs_date_sprayed
		FROM surveillance_forms
		WHERE session_id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("query surveillance forms: %w", err)
	}
	defer rows.Close()

	forms := make(map[uuid.UUID]*models.SurveillanceForm)
	for rows.Next() {
		var (
			sessionID uuid.UUID
			form      models.SurveillanceForm
		)
		if err := rows.Scan(
			&sessionID, &form.BednetsPresent, &form.BednetCount, &form.SleptUnderBednet,
			&form.BednetType, &form.BednetBrand, &form.IRSConducted, &form.IRSInsecticide, &form.IRSDateSprayed,
		); err != nil {
			return nil, fmt.Errorf("scan surveillance form: %w", err)
		}
		forms[sessionID] = &form
	}
	return forms, rows.Err()
}

func (s *PostgresStore) loadSpecimens(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]map[string]*models.SpecimenGroupCount, error) {
	query := `
		SELECT session_id, taxon,
		       SUM(fed), SUM(unfed), SUM(gravid), SUM(half_gravid), SUM(male)
		FROM specimen_groups
		WHERE session_id = ANY($1)
		GROUP BY session_id, taxon`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("query specimen groups: %w", err)
	}
	defer rows.Close()

	specimens := make(map[uuid.UUID]map[string]*models.SpecimenGroupCount)
	for rows.Next() {
		var (
			sessionID uuid.UUID
			group     models.SpecimenGroupCount
		)
		if err := rows.Scan(&sessionID, &group.Taxon, &group.Fed, &group.Unfed, &group.Gravid, &group.HalfGravid, &group.Male); err != nil {
			return nil, fmt.Errorf("scan specimen group: %w", err)
		}
		bySession, ok := specimens[sessionID]
		if !ok {
			bySession = make(map[string]*models.SpecimenGroupCount)
			specimens[sessionID] = bySession
		}
		bySession[group.Taxon] = &group
	}
	return specimens, rows.Err()
}

// mergeSpecimens sums specimen counts per taxon across all of a site's
// sessions for the month.
func mergeSpecimens(sessions []models.SessionRecord, bySessions map[uuid.UUID]map[string]*models.SpecimenGroupCount) []models.SpecimenGroupCount {
	byTaxon := make(map[string]*models.SpecimenGroupCount)
	var order []string
	for _, session := range sessions {
		for taxon, group := range bySessions[session.ID] {
			total, ok := byTaxon[taxon]
			if !ok {
				total = &models.SpecimenGroupCount{Taxon: taxon}
				byTaxon[taxon] = total
				order = append(order, taxon)
			}
			total.Fed += group.Fed
			total.Unfed += group.Unfed
			total.Gravid += group.Gravid
			total.HalfGravid += group.HalfGravid
			total.Male += group.Male
		}
	}
	sort.Strings(order)
	merged := make([]models.SpecimenGroupCount, 0, len(order))
	for _, taxon := range order {
		merged = append(merged, *byTaxon[taxon])
	}
	return merged
}
