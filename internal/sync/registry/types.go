package registry

// Wire types for the tracking registry's HTTP API. The registry identifies
// everything generically: organisation units, tracked entity instances,
// data elements, and key/value events under a program stage.

// EventPayload is the outbound event body for create and update calls.
type EventPayload struct {
	Program               string           `json:"program"`
	ProgramStage          string           `json:"programStage"`
	OrgUnit               string           `json:"orgUnit"`
	TrackedEntityInstance string           `json:"trackedEntityInstance"`
	EventDate             string           `json:"eventDate"`
	Status                string           `json:"status"`
	DataValues            []EventDataValue `json:"dataValues"`
}

// EventDataValue is one (element id, value) pair on an event.
type EventDataValue struct {
	DataElement string `json:"dataElement"`
	Value       string `json:"value"`
}

// Event is a remote event as returned by event queries.
type Event struct {
	Event                 string           `json:"event"`
	Program               string           `json:"program"`
	ProgramStage          string           `json:"programStage"`
	OrgUnit               string           `json:"orgUnit"`
	TrackedEntityInstance string           `json:"trackedEntityInstance"`
	EventDate             string           `json:"eventDate"`
	Status                string           `json:"status"`
	DataValues            []EventDataValue `json:"dataValues"`
}

type orgUnitsResponse struct {
	OrganisationUnits []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"organisationUnits"`
}

type attributesResponse struct {
	TrackedEntityAttributes []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"trackedEntityAttributes"`
}

type entityInstancesResponse struct {
	TrackedEntityInstances []struct {
		TrackedEntityInstance string `json:"trackedEntityInstance"`
		OrgUnit               string `json:"orgUnit"`
		Attributes            []struct {
			DisplayName string `json:"displayName"`
			Value       string `json:"value"`
		} `json:"attributes"`
	} `json:"trackedEntityInstances"`
}

type programStageResponse struct {
	ProgramStageDataElements []struct {
		DataElement struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"dataElement"`
	} `json:"programStageDataElements"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
}

type importResponse struct {
	Response struct {
		ImportSummaries []struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"importSummaries"`
	} `json:"response"`
}

// elementPair is the cached association-list form of the element map; the
// cache stores serialized strings, so the map is flattened into pairs.
type elementPair struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
