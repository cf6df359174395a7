package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "fieldsync/pkg/domainerrors"
)

// SyncRequest triggers one batch run for a (year, month, district) scope.
// The HTTP layer has already resolved which sites the requester may act on.
type SyncRequest struct {
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	District     string               `json:"district"`
	DryRun       bool                 `json:"dryRun"`
	IRSOverrides []IRSOverrideRequest `json:"irsOverrides,omitempty"`
}

// IRSOverrideRequest is the wire form of a per-site IRS override.
type IRSOverrideRequest struct {
	SiteID          uuid.UUID `json:"siteId"`
	WasIrsSprayed   *bool     `json:"wasIrsSprayed,omitempty"`
	Insecticide     *string   `json:"insecticideSprayed,omitempty"`
	DateLastSprayed *string   `json:"dateLastSprayed,omitempty"`
}

func (r *SyncRequest) Normalize() {
	if r == nil {
		return
	}
	r.District = strings.TrimSpace(r.District)
}

// Follows validation order: Required -> Syntax -> Semantic.
func (r *SyncRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.District == "" {
		return dErrors.New(dErrors.CodeBadRequest, "district is required")
	}
	if r.Year < 2000 || r.Year > time.Now().Year()+1 {
		return dErrors.New(dErrors.CodeBadRequest, "year is out of range")
	}
	if r.Month < 1 || r.Month > 12 {
		return dErrors.New(dErrors.CodeBadRequest, "month must be between 1 and 12")
	}
	return nil
}

// Overrides converts the wire overrides into domain overrides keyed by site.
func (r *SyncRequest) Overrides() map[uuid.UUID]IRSOverride {
	if len(r.IRSOverrides) == 0 {
		return nil
	}
	out := make(map[uuid.UUID]IRSOverride, len(r.IRSOverrides))
	for _, o := range r.IRSOverrides {
		out[o.SiteID] = IRSOverride{
			SiteID:          o.SiteID,
			WasSprayed:      o.WasIrsSprayed,
			Insecticide:     o.Insecticide,
			DateLastSprayed: o.DateLastSprayed,
		}
	}
	return out
}
