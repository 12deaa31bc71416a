package places

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidjournal/backend/internal/middleware"
	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/apperror"
)

type fakePlaceStore struct {
	places       map[uuid.UUID]*models.Place
	searchRows   []models.PlaceSearchResult
	searchCalled bool
	searchCenter models.Coordinates
	searchRadius int64
	searchPage   models.PageQuery
	occupancy    int64
	occupancyAt  time.Time
	updateErr    error
}

func (f *fakePlaceStore) Get(_ context.Context, id uuid.UUID) (*models.Place, error) {
	p, ok := f.places[id]
	if !ok || p.Disabled {
		return nil, apperror.NotFoundf("place")
	}
	return p, nil
}

func (f *fakePlaceStore) GetAny(_ context.Context, id uuid.UUID) (*models.Place, error) {
	p, ok := f.places[id]
	if !ok {
		return nil, apperror.NotFoundf("place")
	}
	return p, nil
}

func (f *fakePlaceStore) GetWithOrganization(ctx context.Context, id uuid.UUID) (*models.PlaceWithOrganization, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.PlaceWithOrganization{
		Place:        *p,
		Organization: models.OrganizationSummary{ID: p.OrganizationID, Name: "Test Org"},
	}, nil
}

func (f *fakePlaceStore) ListForOrganization(_ context.Context, organizationID uuid.UUID) ([]models.Place, error) {
	var out []models.Place
	for _, p := range f.places {
		if p.OrganizationID == organizationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePlaceStore) Search(_ context.Context, center models.Coordinates, radiusMeters int64, page models.PageQuery) ([]models.PlaceSearchResult, models.Pagination, error) {
	if radiusMeters <= 0 {
		return nil, models.Pagination{}, apperror.Invalidf("radius must be positive")
	}
	if page.Page <= 0 || page.PageSize <= 0 {
		return nil, models.Pagination{}, apperror.Invalidf("page and page_size must be positive")
	}
	f.searchCalled = true
	f.searchCenter = center
	f.searchRadius = radiusMeters
	f.searchPage = page
	rows, pagination := models.Paginate(f.searchRows, page)
	return rows, pagination, nil
}

func (f *fakePlaceStore) Insert(_ context.Context, organizationID uuid.UUID, fields models.PlaceFields) (uuid.UUID, error) {
	id := uuid.New()
	f.places[id] = &models.Place{ID: id, OrganizationID: organizationID, Name: fields.Name}
	return id, nil
}

func (f *fakePlaceStore) Update(_ context.Context, id, organizationID uuid.UUID, fields models.PlaceFields) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	p, ok := f.places[id]
	if !ok || p.Disabled || p.OrganizationID != organizationID {
		return apperror.NotFoundf("place")
	}
	p.Name = fields.Name
	return nil
}

func (f *fakePlaceStore) SetDisabled(_ context.Context, id, organizationID uuid.UUID, disabled bool) error {
	p, ok := f.places[id]
	if !ok || p.Disabled || p.OrganizationID != organizationID {
		return apperror.NotFoundf("place")
	}
	p.Disabled = disabled
	return nil
}

func (f *fakePlaceStore) Occupancy(_ context.Context, _ uuid.UUID, at time.Time) (int64, error) {
	f.occupancyAt = at
	return f.occupancy, nil
}

func (f *fakePlaceStore) RefreshAllGauges(_ context.Context, _ time.Time) ([]GaugeSnapshot, error) {
	var out []GaugeSnapshot
	for id, p := range f.places {
		out = append(out, GaugeSnapshot{PlaceID: id, Gauge: p.CurrentGauge, Level: p.CurrentGaugeLevel})
	}
	return out, nil
}

func newTestRouter(store *fakePlaceStore, orgID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, testPolicy(), nil)
	r := gin.New()
	r.GET("/places/search", h.Search)
	r.GET("/places/:id", h.GetByID)

	api := r.Group("")
	api.Use(func(c *gin.Context) { c.Set(middleware.ContextOrganizationID, orgID) })
	api.GET("/places", h.List)
	api.POST("/places", h.Create)
	api.PATCH("/places/:id", h.Update)
	api.DELETE("/places/:id", h.Disable)
	api.GET("/places/:id/occupancy", h.Occupancy)
	api.POST("/gauges/refresh", h.RefreshGauges)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchParamValidation(t *testing.T) {
	store := &fakePlaceStore{places: map[uuid.UUID]*models.Place{}}
	r := newTestRouter(store, uuid.New())

	cases := []struct {
		name string
		url  string
	}{
		{"missing latitude", "/places/search?longitude=2.3&radius=500"},
		{"missing longitude", "/places/search?latitude=48.8&radius=500"},
		{"latitude out of range", "/places/search?latitude=91&longitude=2.3&radius=500"},
		{"longitude out of range", "/places/search?latitude=48.8&longitude=181&radius=500"},
		{"missing radius", "/places/search?latitude=48.8&longitude=2.3"},
		{"zero radius", "/places/search?latitude=48.8&longitude=2.3&radius=0"},
		{"negative radius", "/places/search?latitude=48.8&longitude=2.3&radius=-10"},
		{"bad page", "/places/search?latitude=48.8&longitude=2.3&radius=500&page=x"},
		{"zero page_size", "/places/search?latitude=48.8&longitude=2.3&radius=500&page_size=0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, tc.url, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, store.searchCalled, "store must not be queried on invalid input")
		})
	}
}

func TestSearchDefaultsAndPagination(t *testing.T) {
	orgID := uuid.New()
	rows := make([]models.PlaceSearchResult, 21)
	for i := range rows {
		rows[i] = models.PlaceSearchResult{
			Place:         models.Place{ID: uuid.New(), OrganizationID: orgID},
			MeterDistance: float64(i * 10),
		}
	}
	store := &fakePlaceStore{places: map[uuid.UUID]*models.Place{}, searchRows: rows}
	r := newTestRouter(store, orgID)

	w := doRequest(r, http.MethodGet, "/places/search?latitude=48.8566&longitude=2.3522&radius=500", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, models.PageQuery{Page: 1, PageSize: 20}, store.searchPage)
	assert.Equal(t, int64(500), store.searchRadius)
	assert.InDelta(t, 48.8566, store.searchCenter.Latitude, 1e-9)

	var body struct {
		Data struct {
			Places     []json.RawMessage `json:"places"`
			Pagination models.Pagination `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Places, 20)
	if assert.NotNil(t, body.Data.Pagination.NextPage) {
		assert.Equal(t, 2, *body.Data.Pagination.NextPage)
	}
}

func TestGetByIDHidesDisabled(t *testing.T) {
	id := uuid.New()
	store := &fakePlaceStore{places: map[uuid.UUID]*models.Place{
		id: {ID: id, OrganizationID: uuid.New(), Name: "Cafe", Disabled: true},
	}}
	r := newTestRouter(store, uuid.New())

	w := doRequest(r, http.MethodGet, "/places/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateCoordinateValidation(t *testing.T) {
	store := &fakePlaceStore{places: map[uuid.UUID]*models.Place{}}
	r := newTestRouter(store, uuid.New())

	lat := 48.8566
	body := gin.H{
		"name":             "Cafe",
		"average_duration": 30,
		"maximum_duration": 120,
		"latitude":         lat,
		// longitude missing
	}
	w := doRequest(r, http.MethodPost, "/places", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body["longitude"] = 200.0
	w = doRequest(r, http.MethodPost, "/places", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body["longitude"] = 2.3522
	w = doRequest(r, http.MethodPost, "/places", body)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUpdateForeignPlaceIsNotFound(t *testing.T) {
	id := uuid.New()
	store := &fakePlaceStore{places: map[uuid.UUID]*models.Place{
		id: {ID: id, OrganizationID: uuid.New(), Name: "Cafe"},
	}}
	r := newTestRouter(store, uuid.New()) // different organization

	body := gin.H{"name": "Renamed", "average_duration": 30, "maximum_duration": 120}
	w := doRequest(r, http.MethodPatch, "/places/"+id.String(), body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateInvariantViolationIsInternal(t *testing.T) {
	id := uuid.New()
	orgID := uuid.New()
	store := &fakePlaceStore{
		places:    map[uuid.UUID]*models.Place{id: {ID: id, OrganizationID: orgID}},
		updateErr: apperror.CheckAffected(2, "place"),
	}
	r := newTestRouter(store, orgID)

	body := gin.H{"name": "Renamed", "average_duration": 30, "maximum_duration": 120}
	w := doRequest(r, http.MethodPatch, "/places/"+id.String(), body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOccupancyOwnerOnly(t *testing.T) {
	id := uuid.New()
	ownerID := uuid.New()
	store := &fakePlaceStore{
		places: map[uuid.UUID]*models.Place{
			id: {ID: id, OrganizationID: ownerID, MaximumGauge: ptr(10), Disabled: true},
		},
		occupancy: 5,
	}

	t.Run("foreign organization sees not found", func(t *testing.T) {
		r := newTestRouter(store, uuid.New())
		w := doRequest(r, http.MethodGet, "/places/"+id.String()+"/occupancy", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner can audit a disabled place at a past instant", func(t *testing.T) {
		r := newTestRouter(store, ownerID)
		at := "2021-03-14T12:00:00Z"
		w := doRequest(r, http.MethodGet, "/places/"+id.String()+"/occupancy?at="+at, nil)
		require.Equal(t, http.StatusOK, w.Code)

		wantAt, _ := time.Parse(time.RFC3339, at)
		assert.True(t, store.occupancyAt.Equal(wantAt))

		var body struct {
			Data struct {
				Occupancy int64             `json:"occupancy"`
				Level     models.GaugeLevel `json:"level"`
				Percent   *int64            `json:"percent"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, int64(5), body.Data.Occupancy)
		assert.Equal(t, models.GaugeLevelMedium, body.Data.Level)
		if assert.NotNil(t, body.Data.Percent) {
			assert.Equal(t, int64(50), *body.Data.Percent)
		}
	})

	t.Run("malformed at timestamp", func(t *testing.T) {
		r := newTestRouter(store, ownerID)
		w := doRequest(r, http.MethodGet, "/places/"+id.String()+"/occupancy?at=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRefreshGauges(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	store := &fakePlaceStore{places: map[uuid.UUID]*models.Place{
		a: {ID: a},
		b: {ID: b},
	}}
	r := newTestRouter(store, uuid.New())

	w := doRequest(r, http.MethodPost, "/gauges/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			RowsUpdated int `json:"rows_updated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.RowsUpdated)
}
