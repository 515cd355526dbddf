// Package users содержит обработчики личного кабинета пользователя.
package users

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/http/handlers/factory"
	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
)

// MsgUseSignup — ответ на попытку создать пользователя в обход регистрации.
const MsgUseSignup = "This route is not defined! Please use /signup instead"

// Service — операции пользователя над своей учётной записью.
type Service interface {
	UpdateMe(ctx context.Context, userID primitive.ObjectID, body json.RawMessage) (*models.User, error)
	DeactivateMe(ctx context.Context, userID primitive.ObjectID) error
}

// Handler обслуживает /users/updateMe и /users/deleteMe.
type Handler struct {
	log       *slog.Logger
	service   Service
	bodyLimit int64
}

// New создаёт обработчики. bodyLimit <= 0 означает factory.DefaultBodyLimit.
func New(log *slog.Logger, service Service, bodyLimit int64) *Handler {
	if bodyLimit <= 0 {
		bodyLimit = factory.DefaultBodyLimit
	}
	return &Handler{log: log, service: service, bodyLimit: bodyLimit}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// MeID возвращает идентификатор текущего пользователя для factory.WithIDFrom.
func MeID(r *http.Request) string {
	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		return ""
	}
	return user.ID.Hex()
}

// UpdateMe godoc
// @Summary Изменение своих данных
// @Description Меняет только имя и email. Пароль здесь менять нельзя.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /users/updateMe [patch]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.UpdateMe")

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.Unauthorized(auth.MsgNotLoggedIn))
		return
	}
	body, err := factory.ReadBody(w, r, h.bodyLimit)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	updated, err := h.service.UpdateMe(r.Context(), user.ID, body)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, "user", updated)
}

// DeleteMe godoc
// @Summary Деактивация учётной записи
// @Tags Users
// @Security BearerAuth
// @Success 204
// @Router /users/deleteMe [delete]
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.DeleteMe")

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, log, apperr.Unauthorized(auth.MsgNotLoggedIn))
		return
	}
	if err := h.service.DeactivateMe(r.Context(), user.ID); err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("user deactivated", slog.String("user", user.ID.Hex()))
	response.NoContent(w)
}

// CreateUser отвечает, что пользователей создаёт только регистрация.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	response.Fail(w, r, h.logger(r, "handlers.users.CreateUser"), apperr.Unsupported(MsgUseSignup))
}
