package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fieldsync/internal/platform/config"
	"fieldsync/internal/sync/store/cache"
	"fieldsync/pkg/testutil"
)

// fakeRegistryServer is a minimal DHIS2-style endpoint with per-path call
// counting and scriptable failures.
type fakeRegistryServer struct {
	mu       sync.Mutex
	server   *httptest.Server
	calls    map[string]int
	failures map[string]int // path -> remaining 500s before success

	orgUnits map[string]string // name -> id
	entities []map[string]any
	events   []Event
}

func newFakeRegistryServer() *fakeRegistryServer {
	f := &fakeRegistryServer{
		calls:    map[string]int{},
		failures: map[string]int{},
		orgUnits: map[string]string{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeRegistryServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	f.calls[path]++
	if remaining := f.failures[path]; remaining > 0 {
		f.failures[path] = remaining - 1
		f.mu.Unlock()
		http.Error(w, `{"message":"internal error"}`, http.StatusInternalServerError)
		return
	}
	f.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != "sync-user" || pass != "sync-pass" {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	switch {
	case path == "organisationUnits":
		name := strings.TrimPrefix(r.URL.Query().Get("filter"), "name:eq:")
		resp := map[string]any{"organisationUnits": []map[string]string{}}
		f.mu.Lock()
		if id, ok := f.orgUnits[name]; ok {
			resp["organisationUnits"] = []map[string]string{{"id": id, "displayName": name}}
		}
		f.mu.Unlock()
		writeJSON(w, resp)

	case path == "trackedEntityAttributes":
		writeJSON(w, map[string]any{"trackedEntityAttributes": []map[string]string{
			{"id": "ATTR-HN", "displayName": "House Number"},
		}})

	case path == "trackedEntityInstances":
		f.mu.Lock()
		entities := f.entities
		f.mu.Unlock()
		writeJSON(w, map[string]any{"trackedEntityInstances": entities})

	case strings.HasPrefix(path, "programStages/"):
		writeJSON(w, map[string]any{"programStageDataElements": []map[string]any{
			{"dataElement": map[string]string{"id": "DE001", "displayName": "Date of Collection"}},
			{"dataElement": map[string]string{"id": "DE002", "displayName": "IRS Conducted"}},
		}})

	case path == "events" && r.Method == http.MethodGet:
		f.mu.Lock()
		events := f.events
		f.mu.Unlock()
		writeJSON(w, map[string]any{"events": events})

	case path == "events" && r.Method == http.MethodPost:
		writeJSON(w, map[string]any{"response": map[string]any{
			"importSummaries": []map[string]string{{"reference": "EVT123", "status": "SUCCESS"}},
		}})

	case strings.HasPrefix(path, "events/") && r.Method == http.MethodPut:
		writeJSON(w, map[string]any{"httpStatusCode": 200})

	default:
		http.Error(w, fmt.Sprintf(`{"message":"no route for %s"}`, path), http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeRegistryServer) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

type ClientSuite struct {
	suite.Suite
	remote *fakeRegistryServer
	cache  *cache.InMemoryStore
	client *HTTPClient
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.remote = newFakeRegistryServer()
	s.cache = cache.NewMemory()
	s.client = New(config.RegistryConfig{
		BaseURL:      s.remote.server.URL,
		Username:     "sync-user",
		Password:     "sync-pass",
		ProgramID:    "PRG1",
		StageID:      "STG1",
		CallTimeout:  5 * time.Second,
		LookupRetry:  2,
		RetryBackoff: time.Millisecond,
	}, s.cache, nil, testutil.Logger())
}

func (s *ClientSuite) TearDownTest() {
	s.remote.server.Close()
}

func (s *ClientSuite) TestResolveOrgUnitServedFromCacheOnSecondCall() {
	ctx := context.Background()
	s.remote.orgUnits["Mwanza HC"] = "OU001"

	first, err := s.client.ResolveOrgUnit(ctx, "Mwanza HC")
	s.Require().NoError(err)
	s.Equal("OU001", first)

	second, err := s.client.ResolveOrgUnit(ctx, "Mwanza HC")
	s.Require().NoError(err)
	s.Equal("OU001", second)

	s.Equal(1, s.remote.callCount("organisationUnits"), "second resolve must be a cache hit")
}

func (s *ClientSuite) TestResolveOrgUnitNoMatchIsNotAnError() {
	id, err := s.client.ResolveOrgUnit(context.Background(), "Nowhere HC")
	s.Require().NoError(err)
	s.Empty(id)
	// A miss is not cached; the next call asks again.
	_, err = s.client.ResolveOrgUnit(context.Background(), "Nowhere HC")
	s.Require().NoError(err)
	s.Equal(2, s.remote.callCount("organisationUnits"))
}

func (s *ClientSuite) TestSearchTrackedEntity() {
	ctx := context.Background()
	s.remote.orgUnits["Mwanza HC"] = "OU001"
	s.remote.entities = []map[string]any{{
		"trackedEntityInstance": "TEI001",
		"orgUnit":               "OU001",
		"attributes": []map[string]string{
			{"displayName": "House Number", "value": "H-042"},
		},
	}}

	entity, err := s.client.SearchTrackedEntity(ctx, "Mwanza HC", "H-042")
	s.Require().NoError(err)
	s.Require().NotNil(entity)
	s.Equal("TEI001", entity.EntityID)
	s.Equal("OU001", entity.OrgUnitID)
	s.Equal("H-042", entity.Attributes["House Number"])

	// Second search is served from cache.
	again, err := s.client.SearchTrackedEntity(ctx, "Mwanza HC", "H-042")
	s.Require().NoError(err)
	s.Equal(entity.EntityID, again.EntityID)
	s.Equal(1, s.remote.callCount("trackedEntityInstances"))
}

func (s *ClientSuite) TestSearchTrackedEntityCacheKeyIncludesOrgUnit() {
	ctx := context.Background()
	s.remote.orgUnits["Mwanza HC"] = "OU001"
	s.remote.orgUnits["Arusha HC"] = "OU002"
	s.remote.entities = []map[string]any{{
		"trackedEntityInstance": "TEI001",
		"orgUnit":               "OU001",
		"attributes":            []map[string]string{},
	}}

	_, err := s.client.SearchTrackedEntity(ctx, "Mwanza HC", "H-042")
	s.Require().NoError(err)

	// Same house number under a different org unit must not hit the
	// Mwanza cache entry.
	_, err = s.client.SearchTrackedEntity(ctx, "Arusha HC", "H-042")
	s.Require().NoError(err)
	s.Equal(2, s.remote.callCount("trackedEntityInstances"))
}

func (s *ClientSuite) TestSearchTrackedEntityUnknownOrgUnitReturnsNil() {
	entity, err := s.client.SearchTrackedEntity(context.Background(), "Nowhere HC", "H-042")
	s.Require().NoError(err)
	s.Nil(entity)
}

func (s *ClientSuite) TestSearchTrackedEntityNoMatchReturnsNil() {
	s.remote.orgUnits["Mwanza HC"] = "OU001"
	s.remote.entities = nil

	entity, err := s.client.SearchTrackedEntity(context.Background(), "Mwanza HC", "H-042")
	s.Require().NoError(err)
	s.Nil(entity)
}

func (s *ClientSuite) TestFetchElementMapInvertsAndCaches() {
	ctx := context.Background()

	elements, err := s.client.FetchElementMap(ctx, "STG1")
	s.Require().NoError(err)
	s.Equal("DE001", elements["Date of Collection"])
	s.Equal("DE002", elements["IRS Conducted"])

	again, err := s.client.FetchElementMap(ctx, "STG1")
	s.Require().NoError(err)
	s.Equal(elements, again)
	s.Equal(1, s.remote.callCount("programStages/STG1"))
}

func (s *ClientSuite) TestCreateEventReturnsReference() {
	id, err := s.client.CreateEvent(context.Background(), EventPayload{
		Program:      "PRG1",
		ProgramStage: "STG1",
		EventDate:    "2026-07-14",
		Status:       EventStatusCompleted,
	})
	s.Require().NoError(err)
	s.Equal("EVT123", id)
}

func (s *ClientSuite) TestGetExistingEvent() {
	s.remote.events = []Event{{Event: "EVT777", TrackedEntityInstance: "TEI001", EventDate: "2026-07-14"}}

	event, err := s.client.GetExistingEvent(context.Background(), "TEI001", "2026-07-14")
	s.Require().NoError(err)
	s.Require().NotNil(event)
	s.Equal("EVT777", event.Event)
}

func (s *ClientSuite) TestGetExistingEventNone() {
	event, err := s.client.GetExistingEvent(context.Background(), "TEI001", "2026-07-14")
	s.Require().NoError(err)
	s.Nil(event)
}

func (s *ClientSuite) TestLookupRetriesTransientFailures() {
	s.remote.orgUnits["Mwanza HC"] = "OU001"
	s.remote.failures["organisationUnits"] = 2

	id, err := s.client.ResolveOrgUnit(context.Background(), "Mwanza HC")
	s.Require().NoError(err)
	s.Equal("OU001", id)
	s.Equal(3, s.remote.callCount("organisationUnits"))
}

func (s *ClientSuite) TestLookupDoesNotRetryClientErrors() {
	badClient := New(config.RegistryConfig{
		BaseURL:      s.remote.server.URL,
		Username:     "wrong",
		Password:     "wrong",
		CallTimeout:  5 * time.Second,
		LookupRetry:  2,
		RetryBackoff: time.Millisecond,
	}, cache.NewMemory(), nil, testutil.Logger())

	_, err := badClient.ResolveOrgUnit(context.Background(), "Mwanza HC")
	s.Require().Error(err)

	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusUnauthorized, statusErr.Status)
	s.Contains(statusErr.Body, "unauthorized")
	s.Equal(1, s.remote.callCount("organisationUnits"))
}

func (s *ClientSuite) TestMutationsAreNeverRetried() {
	s.remote.failures["events"] = 1

	_, err := s.client.CreateEvent(context.Background(), EventPayload{})
	s.Require().Error(err)

	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusInternalServerError, statusErr.Status)
	s.Equal(1, s.remote.callCount("events"))
}
