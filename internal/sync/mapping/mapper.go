// Package mapping translates a household bundle into the registry's generic
// (element id, value) event format. It is pure: no I/O, no state, and output
// order is deterministic for a given input.
package mapping

import (
	"fmt"
	"strconv"

	"fieldsync/internal/sync/models"
)

// Registry element display names for scalar fields. A pair is emitted only
// when the caller-supplied element map contains the name; deployments
// configure different element sets, so absence is silent omission.
const (
	ElemCollectionDate   = "Date of Collection"
	ElemOfficerName      = "Collection Officer Name"
	ElemOfficerTitle     = "Collection Officer Title"
	ElemCollectionMethod = "Collection Method"
	ElemPeopleInHouse    = "Number of People in House"

	ElemBednetsPresent   = "Bednets Present"
	ElemBednetCount      = "Number of Bednets"
	ElemSleptUnderBednet = "Number Who Slept Under Bednet"
	ElemBednetTypeUsed   = "Bednet Type Used"

	ElemIRSConducted   = "IRS Conducted"
	ElemIRSInsecticide = "IRS Insecticide Used"
	ElemIRSDateSprayed = "IRS Date Last Sprayed"
)

// eventDateLayout is the registry's date format.
const eventDateLayout = "2006-01-02"

// Map converts one household-month into ordered data values. form and
// override may be nil. Any non-nil override field replaces the form's
// corresponding IRS answer; nil fields fall back to the form.
func Map(
	session *models.SessionRecord,
	form *models.SurveillanceForm,
	specimens []models.SpecimenGroupCount,
	elements map[string]string,
	override *models.IRSOverride,
) []models.DataValue {
	e := &emitter{elements: elements}

	if session != nil {
		e.emit(ElemCollectionDate, session.CollectedAt.Format(eventDateLayout))
		e.emit(ElemOfficerName, session.OfficerName)
		e.emit(ElemOfficerTitle, session.OfficerTitle)
		e.emit(ElemCollectionMethod, session.CollectionMethod)
		e.emitInt(ElemPeopleInHouse, session.PeopleInHouse)
	}

	if form != nil {
		e.emitBool(ElemBednetsPresent, form.BednetsPresent)
		e.emitInt(ElemBednetCount, form.BednetCount)
		e.emitInt(ElemSleptUnderBednet, form.SleptUnderBednet)

		// A non-empty free-text type implies the generic "type used" flag
		// plus every matched ingredient-class flag.
		if form.BednetType != "" {
			e.emit(ElemBednetTypeUsed, "true")
			for _, element := range matchAll(bednetTypeVocab, form.BednetType) {
				e.emit(element, "true")
			}
		}
		if form.BednetBrand != "" {
			if element := matchFirst(bednetBrandVocab, form.BednetBrand); element != "" {
				e.emit(element, "true")
			}
		}
	}

	mapIRS(e, form, override)
	mapSpecimens(e, specimens)

	return e.values
}

// mapIRS emits the IRS block from the form with field-by-field override
// precedence.
func mapIRS(e *emitter, form *models.SurveillanceForm, override *models.IRSOverride) {
	var conducted *bool
	var insecticide, dateSprayed string

	if form != nil {
		conducted = form.IRSConducted
		insecticide = form.IRSInsecticide
		dateSprayed = form.IRSDateSprayed
	}
	if override != nil {
		if override.WasSprayed != nil {
			conducted = override.WasSprayed
		}
		if override.Insecticide != nil {
			insecticide = *override.Insecticide
		}
		if override.DateLastSprayed != nil {
			dateSprayed = *override.DateLastSprayed
		}
	}

	e.emitBool(ElemIRSConducted, conducted)
	e.emit(ElemIRSInsecticide, insecticide)
	e.emit(ElemIRSDateSprayed, dateSprayed)
}

// mapSpecimens emits, per taxon group, an "any present" flag when the group
// total is non-zero plus per-subcategory counts when individually non-zero.
func mapSpecimens(e *emitter, specimens []models.SpecimenGroupCount) {
	for _, group := range specimens {
		if group.Total() == 0 {
			continue
		}
		e.emit(fmt.Sprintf("%s Present", group.Taxon), "true")
		e.emitPositive(fmt.Sprintf("%s Fed", group.Taxon), group.Fed)
		e.emitPositive(fmt.Sprintf("%s Unfed", group.Taxon), group.Unfed)
		e.emitPositive(fmt.Sprintf("%s Gravid", group.Taxon), group.Gravid)
		e.emitPositive(fmt.Sprintf("%s Half Gravid", group.Taxon), group.HalfGravid)
		e.emitPositive(fmt.Sprintf("%s Male", group.Taxon), group.Male)
	}
}

// emitter accumulates data values, dropping anything whose display name is
// not in the deployment's element map.
type emitter struct {
	elements map[string]string
	values   []models.DataValue
}

func (e *emitter) emit(displayName, value string) {
	if value == "" {
		return
	}
	id, ok := e.elements[displayName]
	if !ok {
		return
	}
	e.values = append(e.values, models.DataValue{
		DataElementID: id,
		DisplayName:   displayName,
		Value:         value,
	})
}

func (e *emitter) emitBool(displayName string, value *bool) {
	if value == nil {
		return
	}
	e.emit(displayName, strconv.FormatBool(*value))
}

func (e *emitter) emitInt(displayName string, value *int) {
	if value == nil {
		return
	}
	e.emit(displayName, strconv.Itoa(*value))
}

func (e *emitter) emitPositive(displayName string, value int) {
	if value <= 0 {
		return
	}
	e.emit(displayName, strconv.Itoa(value))
}
