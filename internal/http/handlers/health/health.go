// Package health отдаёт состояние сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
)

// Check проверяет одну зависимость.
type Check func(ctx context.Context) error

// Handler опрашивает зависимости и отвечает 200 или 503.
type Handler struct {
	log     *slog.Logger
	checks  map[string]Check
	timeout time.Duration
}

// New создаёт обработчик. timeout ограничивает время одной проверки.
func New(log *slog.Logger, timeout time.Duration, checks map[string]Check) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		timeout: timeout,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	result := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			h.log.Warn("dependency is down", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			result[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	resp := response.Response{Status: response.StatusSuccess, Data: map[string]any{"checks": result}}
	if status != http.StatusOK {
		resp.Status = response.StatusError
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
