// Package password содержит обработчики восстановления и смены пароля.
package password

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/auth/session"
	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
)

// ResetPath — путь, к которому приписывается токен сброса в письме.
const ResetPath = "/api/v1/users/resetPassword/"

// MsgTokenSent — ответ на успешный запрос сброса.
const MsgTokenSent = "Token sent to email!"

// Service — операции с паролем.
type Service interface {
	ForgotPassword(ctx context.Context, email, resetBaseURL string) error
	ResetPassword(ctx context.Context, rawToken string, in auth.PasswordInput) (*auth.Session, error)
	UpdatePassword(ctx context.Context, userID primitive.ObjectID, current string, in auth.PasswordInput) (*auth.Session, error)
}

// ForgotRequest — email пользователя, забывшего пароль.
type ForgotRequest struct {
	Email string `json:"email"`
}

// UpdateRequest — текущий пароль и новый с подтверждением.
type UpdateRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	auth.PasswordInput
}

// Handler обслуживает маршруты пароля.
type Handler struct {
	log       *slog.Logger
	service   Service
	cookieTTL time.Duration
}

// New создаёт обработчики пароля.
func New(log *slog.Logger, service Service, cookieTTL time.Duration) *Handler {
	return &Handler{log: log, service: service, cookieTTL: cookieTTL}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Forgot godoc
// @Summary Запрос сброса пароля
// @Description Отправляет на email одноразовую ссылку для сброса пароля.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body ForgotRequest true "Email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /users/forgotPassword [post]
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.password.Forgot")

	var req ForgotRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, log, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err))
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email, ResetBaseURL(r)); err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.Message(w, r, MsgTokenSent)
}

// Reset godoc
// @Summary Сброс пароля по токену
// @Tags Users
// @Accept json
// @Produce json
// @Param token path string true "Токен из письма"
// @Param request body auth.PasswordInput true "Новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /users/resetPassword/{token} [patch]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.password.Reset")

	var req auth.PasswordInput
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, log, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err))
		return
	}
	sess, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	session.Send(w, r, http.StatusOK, sess, h.cookieTTL)
}

// Update godoc
// @Summary Смена пароля
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateRequest true "Текущий и новый пароль"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /users/updateMyPassword [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.password.Update")

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.Unauthorized(auth.MsgNotLoggedIn))
		return
	}
	var req UpdateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, log, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err))
		return
	}
	sess, err := h.service.UpdatePassword(r.Context(), user.ID, req.PasswordCurrent, req.PasswordInput)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	session.Send(w, r, http.StatusOK, sess, h.cookieTTL)
}

// ResetBaseURL собирает ссылку сброса из схемы и хоста запроса.
func ResetBaseURL(r *http.Request) string {
	scheme := "http"
	if session.Secure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + ResetPath
}
