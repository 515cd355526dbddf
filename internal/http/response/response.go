// Package response формирует ответы API в едином конверте
// {status, results, token, data, message} и содержит единственный
// обработчик ошибок Fail, который переводит ошибку в HTTP-статус.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
)

// Значения поля status.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// MsgInternal — ответ клиенту на непредвиденную ошибку.
const MsgInternal = "Something went very wrong!"

// Response — конверт ответа.
type Response struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status  string `json:"status" example:"fail"`
	Message string `json:"message" example:"No tour found with that ID"`
}

var exposeErrors atomic.Bool

// SetExposeErrors включает вывод деталей непредвиденных ошибок (local/dev).
func SetExposeErrors(v bool) {
	exposeErrors.Store(v)
}

// Data оборачивает документ под ключом key.
func Data(key string, v any) map[string]any {
	return map[string]any{key: v}
}

// OK отправляет 200 с документом под ключом key.
func OK(w http.ResponseWriter, r *http.Request, key string, v any) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{Status: StatusSuccess, Data: Data(key, v)})
}

// Created отправляет 201 с созданным документом.
func Created(w http.ResponseWriter, r *http.Request, key string, v any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{Status: StatusSuccess, Data: Data(key, v)})
}

// List отправляет 200 со списком и числом элементов.
func List(w http.ResponseWriter, r *http.Request, key string, items any, n int) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{Status: StatusSuccess, Results: &n, Data: Data(key, items)})
}

// NoContent отправляет 204 без тела.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Token отправляет токен сессии и пользователя.
func Token(w http.ResponseWriter, r *http.Request, status int, token string, user any) {
	render.Status(r, status)
	render.JSON(w, r, Response{Status: StatusSuccess, Token: token, Data: Data("user", user)})
}

// Message отправляет успешный ответ с текстом.
func Message(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{Status: StatusSuccess, Message: msg})
}

// Fail пишет ответ с ошибкой. Это единственное место, где ошибка
// превращается в HTTP-статус.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg := Describe(err)

	resp := Response{Status: StatusFail, Message: msg}
	if status >= http.StatusInternalServerError {
		resp.Status = StatusError
		log.Error("request failed", slog.Int("status", status), sl.Err(err))
		if exposeErrors.Load() {
			resp.Error = err.Error()
		}
	} else {
		log.Info("request rejected", slog.Int("status", status), sl.Err(err))
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// Describe возвращает HTTP-статус и сообщение для клиента.
func Describe(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ValidationError(verrs)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Operational() {
		return appErr.Status(), appErr.Message
	}
	if exposeErrors.Load() {
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, MsgInternal
}

// ValidationError собирает сообщения о нарушениях в одну строку.
func ValidationError(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("field %s must have %s elements", err.Field(), err.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "eqfield":
			msgs = append(msgs, fmt.Sprintf("field %s must match %s", err.Field(), lowerFirst(err.Param())))
		case "eq":
			msgs = append(msgs, fmt.Sprintf("field %s must be %s", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return "Invalid input data. " + strings.Join(msgs, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
