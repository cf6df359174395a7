// Package registry wraps the external tracking registry's HTTP API: identity
// resolution (organisation units, tracked entities), the element-name map,
// and event reads/writes. Resolutions are read-through cached; event calls
// are direct pass-throughs.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldsync/internal/platform/config"
	"fieldsync/internal/sync/metrics"
	"fieldsync/internal/sync/models"
	"fieldsync/internal/sync/store/cache"
)

// houseNumberAttribute is the fuzzy displayName filter used to locate the
// registry's house-number attribute definition.
const houseNumberAttribute = "House Number"

// EventStatusCompleted is the status stamped on every event the engine writes.
const EventStatusCompleted = "COMPLETED"

// Client is the registry port the orchestrator consumes.
type Client interface {
	// ResolveOrgUnit returns the organisation unit id for an exact display
	// name, or "" when the registry has no match.
	ResolveOrgUnit(ctx context.Context, displayName string) (string, error)

	// SearchTrackedEntity finds the household's tracked entity by house
	// number within an organisation unit. Returns nil when no entity matches.
	SearchTrackedEntity(ctx context.Context, orgUnitName, houseNumber string) (*models.TrackedEntity, error)

	// FetchElementMap returns the displayName -> element id map configured
	// for the program stage scope.
	FetchElementMap(ctx context.Context, scopeID string) (map[string]string, error)

	// CreateEvent posts a new event and returns the remote event id, or ""
	// when the registry response carries no reference.
	CreateEvent(ctx context.Context, payload EventPayload) (string, error)

	// UpdateEvent replaces an existing event's payload.
	UpdateEvent(ctx context.Context, eventID string, payload EventPayload) error

	// GetExistingEvent returns the event already recorded for the entity on
	// the given date, or nil when none exists.
	GetExistingEvent(ctx context.Context, entityID, eventDate string) (*Event, error)
}

// StatusError carries a non-2xx registry response.
type StatusError struct {
	Operation string
	Status    int
	Body      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry %s: status %d: %s", e.Operation, e.Status, e.Body)
}

// HTTPClient implements Client against a DHIS2-style registry with HTTP
// Basic authentication.
type HTTPClient struct {
	baseURL   string
	username  string
	password  string
	programID string
	stageID   string

	httpc        *http.Client
	callTimeout  time.Duration
	lookupRetry  int
	retryBackoff time.Duration

	cache   cache.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New constructs a registry client over the given cache. The cache scope for
// all kinds is the configured program-stage id.
func New(cfg config.RegistryConfig, cacheStore cache.Store, m *metrics.Metrics, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		programID:    cfg.ProgramID,
		stageID:      cfg.StageID,
		httpc:        &http.Client{},
		callTimeout:  cfg.CallTimeout,
		lookupRetry:  cfg.LookupRetry,
		retryBackoff: cfg.RetryBackoff,
		cache:        cacheStore,
		metrics:      m,
		logger:       logger,
	}
}

// ScopeID returns the cache/ledger scope, which is the program-stage id.
func (c *HTTPClient) ScopeID() string {
	return c.stageID
}

func (c *HTTPClient) ResolveOrgUnit(ctx context.Context, displayName string) (string, error) {
	if cached, ok := c.cache.Get(ctx, c.stageID, models.CacheKindOrgUnit, displayName); ok {
		c.metrics.RecordCacheHit(string(models.CacheKindOrgUnit))
		return cached, nil
	}
	c.metrics.RecordCacheMiss(string(models.CacheKindOrgUnit))

	query := url.Values{}
	query.Set("filter", "name:eq:"+displayName)
	query.Set("fields", "id,displayName")
	query.Set("paging", "false")

	var resp orgUnitsResponse
	if err := c.get(ctx, "organisationUnits", query, &resp); err != nil {
		return "", err
	}
	if len(resp.OrganisationUnits) == 0 {
		return "", nil
	}

	id := resp.OrganisationUnits[0].ID
	c.cache.Set(ctx, c.stageID, models.CacheKindOrgUnit, displayName, id)
	return id, nil
}

func (c *HTTPClient) SearchTrackedEntity(ctx context.Context, orgUnitName, houseNumber string) (*models.TrackedEntity, error) {
	// Key on (org unit, house number): house numbers repeat across org
	// units, and a house-number-only key can return a cross-site hit.
	cacheKey := orgUnitName + "|" + houseNumber
	if cached, ok := c.cache.Get(ctx, c.stageID, models.CacheKindTrackedEntity, cacheKey); ok {
		c.metrics.RecordCacheHit(string(models.CacheKindTrackedEntity))
		var entity models.TrackedEntity
		if err := json.Unmarshal([]byte(cached), &entity); err == nil {
			return &entity, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached tracked entity", "key", cacheKey)
	} else {
		c.metrics.RecordCacheMiss(string(models.CacheKindTrackedEntity))
	}

	orgUnitID, err := c.ResolveOrgUnit(ctx, orgUnitName)
	if err != nil {
		return nil, err
	}
	if orgUnitID == "" {
		return nil, nil
	}

	attrID, err := c.houseNumberAttributeID(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("ou", orgUnitID)
	query.Set("program", c.programID)
	query.Set("filter", fmt.Sprintf("%s:eq:%s", attrID, houseNumber))
	query.Set("fields", "trackedEntityInstance,orgUnit,attributes[displayName,value]")

	var resp entityInstancesResponse
	if err := c.get(ctx, "trackedEntityInstances", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.TrackedEntityInstances) == 0 {
		return nil, nil
	}

	// Multiple matches are not disambiguated; the first wins.
	instance := resp.TrackedEntityInstances[0]
	entity := &models.TrackedEntity{
		EntityID:   instance.TrackedEntityInstance,
		OrgUnitID:  instance.OrgUnit,
		Attributes: make(map[string]string, len(instance.Attributes)),
	}
	for _, attr := range instance.Attributes {
		entity.Attributes[attr.DisplayName] = attr.Value
	}

	if encoded, err := json.Marshal(entity); err == nil {
		c.cache.Set(ctx, c.stageID, models.CacheKindTrackedEntity, cacheKey, string(encoded))
	}
	return entity, nil
}

func (c *HTTPClient) houseNumberAttributeID(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("filter", "displayName:like:"+houseNumberAttribute)
	query.Set("fields", "id,displayName")

	var resp attributesResponse
	if err := c.get(ctx, "trackedEntityAttributes", query, &resp); err != nil {
		return "", err
	}
	if len(resp.TrackedEntityAttributes) == 0 {
		return "", fmt.Errorf("registry has no %q attribute configured", houseNumberAttribute)
	}
	return resp.TrackedEntityAttributes[0].ID, nil
}

func (c *HTTPClient) FetchElementMap(ctx context.Context, scopeID string) (map[string]string, error) {
	if cached, ok := c.cache.Get(ctx, c.stageID, models.CacheKindElementMap, scopeID); ok {
		c.metrics.RecordCacheHit(string(models.CacheKindElementMap))
		var pairs []elementPair
		if err := json.Unmarshal([]byte(cached), &pairs); err == nil {
			elements := make(map[string]string, len(pairs))
			for _, p := range pairs {
				elements[p.Name] = p.ID
			}
			return elements, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached element map", "scope", scopeID)
	} else {
		c.metrics.RecordCacheMiss(string(models.CacheKindElementMap))
	}

	query := url.Values{}
	query.Set("fields", "programStageDataElements[dataElement[id,displayName]]")

	var resp programStageResponse
	if err := c.get(ctx, "programStages/"+scopeID, query, &resp); err != nil {
		return nil, err
	}

	elements := make(map[string]string, len(resp.ProgramStageDataElements))
	pairs := make([]elementPair, 0, len(resp.ProgramStageDataElements))
	for _, psde := range resp.ProgramStageDataElements {
		elements[psde.DataElement.DisplayName] = psde.DataElement.ID
		pairs = append(pairs, elementPair{Name: psde.DataElement.DisplayName, ID: psde.DataElement.ID})
	}

	if encoded, err := json.Marshal(pairs); err == nil {
		c.cache.Set(ctx, c.stageID, models.CacheKindElementMap, scopeID, string(encoded))
	}
	return elements, nil
}

func (c *HTTPClient) CreateEvent(ctx context.Context, payload EventPayload) (string, error) {
	var resp importResponse
	if err := c.send(ctx, http.MethodPost, "events", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Response.ImportSummaries) == 0 {
		return "", nil
	}
	return resp.Response.ImportSummaries[0].Reference, nil
}

func (c *HTTPClient) UpdateEvent(ctx context.Context, eventID string, payload EventPayload) error {
	return c.send(ctx, http.MethodPut, "events/"+eventID, payload, nil)
}

func (c *HTTPClient) GetExistingEvent(ctx context.Context, entityID, eventDate string) (*Event, error) {
	query := url.Values{}
	query.Set("trackedEntityInstance", entityID)
	query.Set("program", c.programID)
	query.Set("programStage", c.stageID)
	query.Set("startDate", eventDate)
	query.Set("endDate", eventDate)

	var resp eventsResponse
	if err := c.get(ctx, "events", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Events) == 0 {
		return nil, nil
	}
	event := resp.Events[0]
	return &event, nil
}

// get performs an idempotent lookup with bounded retries on transport errors
// and 5xx responses.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	var lastErr error
	backoff := c.retryBackoff
	for attempt := 0; attempt <= c.lookupRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.do(ctx, http.MethodGet, path, query, nil, out)
		if lastErr == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Status < http.StatusInternalServerError {
			// Client errors are not transient.
			return lastErr
		}
	}
	return lastErr
}

// send performs a mutating call. Never retried: event creation has no
// idempotency key, so a retried create can duplicate the remote event.
func (c *HTTPClient) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	operation := method + " /" + trimResourcePath(path)
	start := time.Now()
	resp, err := c.httpc.Do(req)
	c.metrics.ObserveRegistryCall(operation, time.Since(start))
	if err != nil {
		return fmt.Errorf("registry %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("registry %s: read body: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Operation: operation, Status: resp.StatusCode, Body: string(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("registry %s: decode body: %w", operation, err)
		}
	}
	return nil
}

// trimResourcePath strips ids from paths so metric labels stay low-cardinality.
func trimResourcePath(path string) string {
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return path
}
