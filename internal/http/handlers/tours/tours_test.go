package tours

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/tour"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Stats(ctx context.Context) ([]tour.DifficultyStats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]tour.DifficultyStats)
	return s, args.Error(1)
}

func (m *ServiceMock) MonthlyPlan(ctx context.Context, yearParam string) ([]tour.MonthPlan, error) {
	args := m.Called(ctx, yearParam)
	p, _ := args.Get(0).([]tour.MonthPlan)
	return p, args.Error(1)
}

func (m *ServiceMock) Within(ctx context.Context, distanceParam, latlng, unit string) ([]models.Tour, error) {
	args := m.Called(ctx, distanceParam, latlng, unit)
	t, _ := args.Get(0).([]models.Tour)
	return t, args.Error(1)
}

func (m *ServiceMock) Distances(ctx context.Context, latlng, unit string) ([]tour.Distance, error) {
	args := m.Called(ctx, latlng, unit)
	d, _ := args.Get(0).([]tour.Distance)
	return d, args.Error(1)
}

func router(svc Service) http.Handler {
	h := New(sl.Discard(), svc)
	r := chi.NewRouter()
	r.Get("/tours/tour-stats", h.Stats)
	r.Get("/tours/monthly-plan/{year}", h.MonthlyPlan)
	r.Get("/tours/tours-within/{distance}/center/{latlng}/unit/{unit}", h.Within)
	r.Get("/tours/distances/{latlng}/unit/{unit}", h.Distances)
	return r
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr, body
}

func TestAliasTopTours(t *testing.T) {
	var got url.Values
	h := AliasTopTours(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tours/top-5-cheap?limit=100&difficulty=easy", nil))

	assert.Equal(t, "5", got.Get("limit"))
	assert.Equal(t, "-ratingsAverage,price", got.Get("sort"))
	assert.Equal(t, "name,price,ratingsAverage,summary,difficulty", got.Get("fields"))
	assert.Equal(t, "easy", got.Get("difficulty"))
}

func TestHandler_Stats(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Stats", mock.Anything).Return([]tour.DifficultyStats{{Difficulty: "EASY", NumTours: 4}}, nil)

	rr, body := get(t, router(svc), "/tours/tour-stats")
	assert.Equal(t, http.StatusOK, rr.Code)
	stats := body["data"].(map[string]any)["stats"].([]any)
	require.Len(t, stats, 1)
	assert.Equal(t, "EASY", stats[0].(map[string]any)["_id"])
}

func TestHandler_MonthlyPlan(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("MonthlyPlan", mock.Anything, "2021").Return([]tour.MonthPlan{{Month: 7, NumTourStarts: 3, Tours: []string{"The Sea Explorer"}}}, nil)
	svc.On("MonthlyPlan", mock.Anything, "abc").Return(nil, apperr.BadRequest("Invalid year: abc"))

	rr, body := get(t, router(svc), "/tours/monthly-plan/2021")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["data"].(map[string]any)["plan"], 1)

	rr, body = get(t, router(svc), "/tours/monthly-plan/abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid year: abc", body["message"])
}

func TestHandler_Within(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Within", mock.Anything, "200", "34.111745,-118.113491", "mi").Return([]models.Tour{{Name: "The Sea Explorer"}, {Name: "The Park Camper"}}, nil)

	rr, body := get(t, router(svc), "/tours/tours-within/200/center/34.111745,-118.113491/unit/mi")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, body["results"])
	svc.AssertExpectations(t)
}

func TestHandler_Distances(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Distances", mock.Anything, "nope", "km").Return(nil, apperr.BadRequest(tour.MsgLatLngFormat))

	rr, body := get(t, router(svc), "/tours/distances/nope/unit/km")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, tour.MsgLatLngFormat, body["message"])
}
