// Package login реализует HTTP-обработчик входа по email и паролю.
package login

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/auth/session"
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
)

// Request — учётные данные.
type Request struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service проверяет учётные данные.
type Service interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// Handler обрабатывает POST /users/login.
type Handler struct {
	log       *slog.Logger
	service   Service
	cookieTTL time.Duration
}

// New создаёт обработчик входа.
func New(log *slog.Logger, service Service, cookieTTL time.Duration) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		cookieTTL: cookieTTL,
	}
}

// ServeHTTP godoc
// @Summary Вход
// @Description Проверяет email и пароль и выдаёт токен сессии.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body Request true "Учётные данные"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /users/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, log, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err))
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("login success", slog.String("user", sess.User.ID.Hex()))
	session.Send(w, r, http.StatusOK, sess, h.cookieTTL)
}
