// Package tours содержит отчётные и гео-обработчики туров.
// CRUD туров обслуживает пакет factory.
package tours

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/tour"
)

// Service — отчёты по турам.
type Service interface {
	Stats(ctx context.Context) ([]tour.DifficultyStats, error)
	MonthlyPlan(ctx context.Context, yearParam string) ([]tour.MonthPlan, error)
	Within(ctx context.Context, distanceParam, latlng, unit string) ([]models.Tour, error)
	Distances(ctx context.Context, latlng, unit string) ([]tour.Distance, error)
}

// Handler обслуживает отчёты туров.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт обработчики отчётов.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// AliasTopTours подменяет строку запроса на выборку пяти лучших недорогих туров.
func AliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}

// Stats godoc
// @Summary Статистика по сложности
// @Description Туры с рейтингом от 4.5, сгруппированные по сложности.
// @Tags Tours
// @Produce json
// @Success 200 {object} response.Response
// @Router /tours/tour-stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tours.Stats")

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, "stats", stats)
}

// MonthlyPlan godoc
// @Summary Загрузка по месяцам
// @Tags Tours
// @Produce json
// @Security BearerAuth
// @Param year path int true "Год"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /tours/monthly-plan/{year} [get]
func (h *Handler) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tours.MonthlyPlan")

	plan, err := h.service.MonthlyPlan(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, "plan", plan)
}

// Within godoc
// @Summary Туры в радиусе
// @Tags Tours
// @Produce json
// @Param distance path number true "Радиус"
// @Param latlng path string true "Центр в формате lat,lng"
// @Param unit path string true "mi или km"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /tours/tours-within/{distance}/center/{latlng}/unit/{unit} [get]
func (h *Handler) Within(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tours.Within")

	found, err := h.service.Within(r.Context(), chi.URLParam(r, "distance"), chi.URLParam(r, "latlng"), chi.URLParam(r, "unit"))
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.List(w, r, "data", found, len(found))
}

// Distances godoc
// @Summary Расстояния до туров
// @Tags Tours
// @Produce json
// @Param latlng path string true "Точка в формате lat,lng"
// @Param unit path string true "mi или km"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /tours/distances/{latlng}/unit/{unit} [get]
func (h *Handler) Distances(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.tours.Distances")

	distances, err := h.service.Distances(r.Context(), chi.URLParam(r, "latlng"), chi.URLParam(r, "unit"))
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, "data", distances)
}
