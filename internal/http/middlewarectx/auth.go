// Package middlewarectx содержит HTTP middleware: проверку сессии (Protect),
// ограничение по ролям (RestrictTo), лимит запросов и метрики.
//
// Protect берёт токен из заголовка Authorization или из cookie jwt,
// проверяет его через сервис аутентификации и кладёт пользователя в контекст.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User — ключ текущего пользователя в контексте.
const User Key = "user"

// CookieName — имя cookie с токеном сессии.
const CookieName = "jwt"

// MsgForbidden — ответ при недостаточной роли.
const MsgForbidden = "You do not have permission to perform this action"

// Authenticator проверяет токен сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Protect возвращает middleware, который пропускает только запросы
// с действительным токеном.
func Protect(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Protect"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			user, err := auth.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				response.Fail(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RestrictTo возвращает middleware, который пропускает только указанные роли.
// Должен стоять после Protect.
func RestrictTo(log *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RestrictTo"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			user, ok := UserFromContext(r.Context())
			if !ok {
				response.Fail(w, r, log, apperr.Unauthorized("You are not logged in! Please log in to get access."))
				return
			}
			if !slices.Contains(roles, user.Role) {
				response.Fail(w, r, log, apperr.Forbidden(MsgForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest достаёт токен из Authorization: Bearer или из cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, User, user)
}

// UserFromContext возвращает пользователя, положенного Protect.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(User).(*models.User)
	return user, ok && user != nil
}
