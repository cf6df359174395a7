package models

import "github.com/google/uuid"

// SyncResponse is the batch outcome returned to the HTTP layer.
type SyncResponse struct {
	Success bool            `json:"success"`
	RunID   string          `json:"runId"`
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	DryRun  bool            `json:"dryRun"`
	Summary SummaryResponse `json:"summary"`
	Results []ResultItem    `json:"results"`
}

// SummaryResponse is the wire form of BatchSummary.
type SummaryResponse struct {
	TotalHouseholds   int `json:"totalHouseholds"`
	SuccessfulSyncs   int `json:"successfulSyncs"`
	FailedSyncs       int `json:"failedSyncs"`
	SkippedHouseholds int `json:"skippedHouseholds"`
}

// ResultItem is the wire form of one household's SyncResult.
type ResultItem struct {
	SiteID          uuid.UUID   `json:"siteId"`
	HouseNumber     string      `json:"houseNumber"`
	HealthCenter    string      `json:"healthCenter"`
	Status          SyncStatus  `json:"status"`
	Message         string      `json:"message"`
	TeiID           string      `json:"teiId,omitempty"`
	EventID         string      `json:"eventId,omitempty"`
	DataValuesCount int         `json:"dataValuesCount,omitempty"`
	DataValues      []DataValue `json:"dataValues,omitempty"`
}

// ToResultItem converts a domain result to its wire form.
func ToResultItem(r SyncResult) ResultItem {
	return ResultItem{
		SiteID:          r.SiteID,
		HouseNumber:     r.HouseNumber,
		HealthCenter:    r.HealthCenter,
		Status:          r.Status,
		Message:         r.Message,
		TeiID:           r.EntityID,
		EventID:         r.EventID,
		DataValuesCount: r.DataValuesCount,
		DataValues:      r.DataValues,
	}
}
