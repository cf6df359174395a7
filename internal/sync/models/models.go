package models

import (
	"time"

	"github.com/google/uuid"
)

// CacheKind namespaces lookup-cache entries within a registry scope.
type CacheKind string

const (
	CacheKindOrgUnit       CacheKind = "org-unit"
	CacheKindTrackedEntity CacheKind = "tracked-entity"
	CacheKindElementMap    CacheKind = "element-map"
)

// LedgerEntry records that a household-month has already produced a remote
// event. It is the local source of truth for idempotent re-sync: at most one
// entry exists per (scope, site, year, month), and entries are never deleted
// by the sync engine.
type LedgerEntry struct {
	ScopeID      string
	SiteID       uuid.UUID
	Year         int
	Month        int
	EventID      string
	EntityID     string
	OrgUnitID    string
	EventDate    string // YYYY-MM-DD
	LastSyncedAt time.Time
}

// SessionRecord is the most recent collection session for a household-month.
type SessionRecord struct {
	ID               uuid.UUID
	CollectedAt      time.Time
	OfficerName      string
	OfficerTitle     string
	CollectionMethod string
	PeopleInHouse    *int
}

// SurveillanceForm is the optional household surveillance snapshot captured
// alongside a session. Pointer fields distinguish "not answered" from zero.
type SurveillanceForm struct {
	BednetsPresent   *bool
	BednetCount      *int
	SleptUnderBednet *int
	BednetType       string
	BednetBrand      string
	IRSConducted     *bool
	IRSInsecticide   string
	IRSDateSprayed   string // YYYY-MM-DD
}

// SpecimenGroupCount tallies collected specimens for one taxon by
// physiological state and sex.
type SpecimenGroupCount struct {
	Taxon      string
	Fed        int
	Unfed      int
	Gravid     int
	HalfGravid int
	Male       int
}

// Total returns the group total across all subcategories.
func (c SpecimenGroupCount) Total() int {
	return c.Fed + c.Unfed + c.Gravid + c.HalfGravid + c.Male
}

// IRSOverride carries operator-supplied IRS values for one site. Any non-nil
// field replaces the corresponding surveillance-form answer for the current
// sync run only; nil fields fall back to the form.
type IRSOverride struct {
	SiteID          uuid.UUID
	WasSprayed      *bool
	Insecticide     *string
	DateLastSprayed *string
}

// HouseholdBundle is the aggregated per-site, per-month input to the sync
// engine. The aggregation query producing it lives outside this subsystem.
type HouseholdBundle struct {
	SiteID       uuid.UUID
	HouseNumber  string
	HealthCenter string

	// Session is the most recent session of the month by collection date.
	Session *SessionRecord
	// SessionIDs lists every session contributing to this household-month;
	// all of them are marked submitted after a successful remote write.
	SessionIDs []uuid.UUID

	Form      *SurveillanceForm
	Specimens []SpecimenGroupCount
}

// TrackedEntity is a household's resolved identity in the remote registry.
type TrackedEntity struct {
	EntityID   string            `json:"entityId"`
	OrgUnitID  string            `json:"orgUnitId"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DataValue is one mapped (element, value) pair. DisplayName is carried for
// the audit trail only; the registry consumes DataElementID and Value.
type DataValue struct {
	DataElementID string `json:"dataElementId"`
	DisplayName   string `json:"displayName,omitempty"`
	Value         string `json:"value"`
}

// SyncStatus is the per-household outcome class.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusFailed  SyncStatus = "failed"
	StatusSkipped SyncStatus = "skipped"
)

// SyncResult is the per-household outcome record.
type SyncResult struct {
	SiteID          uuid.UUID
	HouseNumber     string
	HealthCenter    string
	Status          SyncStatus
	Message         string
	EntityID        string
	EventID         string
	DataValuesCount int
	DataValues      []DataValue
}

// BatchSummary aggregates outcomes across one batch invocation.
type BatchSummary struct {
	TotalHouseholds   int
	SuccessfulSyncs   int
	FailedSyncs       int
	SkippedHouseholds int
}
