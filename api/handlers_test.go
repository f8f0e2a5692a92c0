package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jesposito/walkabout/airports"
	"github.com/jesposito/walkabout/db"
)

type fakeAPIStore struct {
	pingErr  error
	defs     map[int64]*db.SearchDefinition
	plans    map[int64]*db.TripPlan
	healths  []db.ScrapeHealth
	settings db.UserSettings
	nextID   int64

	deactivated []int64
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{
		defs:  make(map[int64]*db.SearchDefinition),
		plans: make(map[int64]*db.TripPlan),
	}
}

func (f *fakeAPIStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeAPIStore) ListActiveSearchDefinitions(context.Context) ([]*db.SearchDefinition, error) {
	var out []*db.SearchDefinition
	for _, d := range f.defs {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeAPIStore) GetSearchDefinition(_ context.Context, id int64) (*db.SearchDefinition, error) {
	d, ok := f.defs[id]
	if !ok {
		// Same wrapped shape the postgres store returns.
		return nil, fmt.Errorf("search definition %d not found: %w", id, sql.ErrNoRows)
	}
	return d, nil
}

func (f *fakeAPIStore) CreateSearchDefinition(_ context.Context, d *db.SearchDefinition) (int64, error) {
	f.nextID++
	d.ID = f.nextID
	d.Version = 1
	f.defs[d.ID] = d
	return d.ID, nil
}

func (f *fakeAPIStore) ReviseSearchDefinition(_ context.Context, oldID int64, d *db.SearchDefinition) (int64, error) {
	old, ok := f.defs[oldID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	old.Active = false
	f.nextID++
	d.ID = f.nextID
	d.Version = old.Version + 1
	d.PreviousVersionID = sql.NullInt64{Int64: oldID, Valid: true}
	f.defs[d.ID] = d
	return d.ID, nil
}

func (f *fakeAPIStore) DeactivateSearchDefinition(_ context.Context, id int64) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeAPIStore) LatestPrices(context.Context, int64, int) ([]db.FlightPrice, error) {
	return nil, nil
}

func (f *fakeAPIStore) ListScrapeHealth(context.Context) ([]db.ScrapeHealth, error) {
	return f.healths, nil
}

func (f *fakeAPIStore) ListActiveTripPlans(context.Context) ([]*db.TripPlan, error) {
	var out []*db.TripPlan
	for _, p := range f.plans {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAPIStore) GetTripPlan(_ context.Context, id int64) (*db.TripPlan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, fmt.Errorf("trip plan %d not found: %w", id, sql.ErrNoRows)
	}
	return p, nil
}

func (f *fakeAPIStore) CreateTripPlan(_ context.Context, p *db.TripPlan) (int64, error) {
	f.nextID++
	p.ID = f.nextID
	f.plans[p.ID] = p
	return p.ID, nil
}

func (f *fakeAPIStore) ListTripPlanMatches(context.Context, int64) ([]db.TripPlanMatch, error) {
	return nil, nil
}

func (f *fakeAPIStore) GetUserSettings(context.Context) (*db.UserSettings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeAPIStore) UpdateUserSettings(_ context.Context, s *db.UserSettings) error {
	f.settings = *s
	return nil
}

type fakeAPIQueue struct {
	pending  int64
	enqueued []int64
}

func (f *fakeAPIQueue) EnqueueTripSearch(_ context.Context, planID int64) (string, error) {
	f.enqueued = append(f.enqueued, planID)
	return "job-1", nil
}

func (f *fakeAPIQueue) Pending(context.Context) (int64, error) { return f.pending, nil }

func newTestRouter(store Store, q Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// A missing CSV path yields the built-in fallback catalog.
	catalog, _ := airports.Load("")
	RegisterRoutes(router, store, q, catalog, time.Now())
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validSearchRequest() SearchRequest {
	return SearchRequest{
		Origin:          "AKL",
		Destination:     "NRT",
		TripType:        "round_trip",
		DaysFromNowMin:  30,
		DaysFromNowMax:  90,
		TripDurationMin: 7,
		TripDurationMax: 14,
		Adults:          1,
		CabinClass:      "economy",
		Stops:           "any",
		Currency:        "NZD",
	}
}

func TestHealthOK(t *testing.T) {
	store := newFakeAPIStore()
	store.healths = []db.ScrapeHealth{{SearchDefinitionID: 1}, {SearchDefinitionID: 2, CircuitOpen: true}}
	router := newTestRouter(store, &fakeAPIQueue{pending: 3})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["queue_pending"])
	assert.EqualValues(t, 1, body["circuits_open"])
}

func TestHealthDegradedWhenDBDown(t *testing.T) {
	store := newFakeAPIStore()
	store.pingErr = errors.New("connection refused")
	router := newTestRouter(store, nil)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestCreateSearch(t *testing.T) {
	store := newFakeAPIStore()
	router := newTestRouter(store, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/searches", validSearchRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.defs, 1)
	assert.Equal(t, "AKL", store.defs[1].Origin)
	assert.True(t, store.defs[1].IsRolling())
}

func TestCreateSearchRejectsBadIATA(t *testing.T) {
	router := newTestRouter(newFakeAPIStore(), nil)

	req := validSearchRequest()
	req.Origin = "Auckland"
	rec := doJSON(t, router, http.MethodPost, "/api/v1/searches", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "IATA")
}

func TestCreateSearchRejectsInvertedWindow(t *testing.T) {
	router := newTestRouter(newFakeAPIStore(), nil)

	req := validSearchRequest()
	req.DepartureStart = "2026-12-20"
	req.DepartureEnd = "2026-12-01"
	rec := doJSON(t, router, http.MethodPost, "/api/v1/searches", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviseSearchVersions(t *testing.T) {
	store := newFakeAPIStore()
	router := newTestRouter(store, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/searches", validSearchRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	revised := validSearchRequest()
	revised.CabinClass = "business"
	rec = doJSON(t, router, http.MethodPut, "/api/v1/searches/1", revised)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, store.defs[1].Active, "old version deactivated")
	assert.Equal(t, 2, store.defs[2].Version)
	assert.Equal(t, int64(1), store.defs[2].PreviousVersionID.Int64)
	assert.Equal(t, "business", store.defs[2].CabinClass)
}

func TestGetSearchNotFound(t *testing.T) {
	router := newTestRouter(newFakeAPIStore(), nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/searches/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/searches/banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundSurvivesErrorWrapping(t *testing.T) {
	// The store annotates sql.ErrNoRows with the id; the handler must still
	// map the wrapped error to 404, not 500.
	wrapped := fmt.Errorf("search definition %d not found: %w", int64(42), sql.ErrNoRows)
	require.True(t, errors.Is(wrapped, sql.ErrNoRows))

	router := newTestRouter(newFakeAPIStore(), &fakeAPIQueue{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/trip-plans/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/trip-plans/42/search", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTripPlanAndTriggerSearch(t *testing.T) {
	store := newFakeAPIStore()
	q := &fakeAPIQueue{}
	router := newTestRouter(store, q)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/trip-plans", TripPlanRequest{
		Name:             "Japan spring",
		Destinations:     []string{"NRT"},
		DurationMinDays:  7,
		DurationMaxDays:  14,
		BudgetMax:        1500,
		BudgetCurrency:   "NZD",
		CheckFrequencyHr: 24,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.plans, 1)
	assert.Equal(t, 1, store.plans[1].Adults, "adults defaults to 1")

	rec = doJSON(t, router, http.MethodPost, "/api/v1/trip-plans/1/search", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []int64{1}, q.enqueued)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/trip-plans/9/search", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettingsValidation(t *testing.T) {
	store := newFakeAPIStore()
	router := newTestRouter(store, nil)

	good := SettingsRequest{
		PreferredCurrency: "NZD",
		NotifyProvider:    "ntfy_sh",
		NtfyTopic:         "walkabout",
		QuietHoursStart:   22,
		QuietHoursEnd:     7,
		Timezone:          "Pacific/Auckland",
		NotificationsOn:   true,
		NotifyDeals:       true,
	}
	rec := doJSON(t, router, http.MethodPut, "/api/v1/settings", good)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ntfy_sh", store.settings.NotifyProvider)

	bad := good
	bad.Timezone = "Pacific/Nowhere"
	rec = doJSON(t, router, http.MethodPut, "/api/v1/settings", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad = good
	bad.NotifyProvider = "carrier_pigeon"
	rec = doJSON(t, router, http.MethodPut, "/api/v1/settings", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchAirportsEndpoint(t *testing.T) {
	router := newTestRouter(newFakeAPIStore(), nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/airports/search?q=auckland", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AKL")

	rec = doJSON(t, router, http.MethodGet, "/api/v1/airports/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
