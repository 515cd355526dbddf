// Package signup реализует HTTP-обработчик регистрации пользователя.
package signup

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

// Service регистрирует пользователя.
type Service interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Session, error)
}

// Handler обрабатывает POST /users/signup.
type Handler struct {
	log       *slog.Logger
	service   Service
	cookieTTL time.Duration
}

// New создаёт обработчик регистрации.
func New(log *slog.Logger, service Service, cookieTTL time.Duration) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		cookieTTL: cookieTTL,
	}
}

// ServeHTTP godoc
// @Summary Регистрация
// @Description Создаёт пользователя с ролью user и выдаёт токен сессии.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body auth.SignupInput true "Данные пользователя"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /users/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signup"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req auth.SignupInput
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, log, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err))
		return
	}

	sess, err := h.service.Signup(r.Context(), req)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("user signed up", slog.String("user", sess.User.ID.Hex()))
	session.Send(w, r, http.StatusCreated, sess, h.cookieTTL)
}
