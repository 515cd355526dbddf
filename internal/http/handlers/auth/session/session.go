// Package session выдаёт токен сессии клиенту: в теле ответа и в http-only cookie.
package session

import (
	"net/http"
	"time"

	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
)

// LogoutTTL — время жизни cookie-заглушки после выхода.
const LogoutTTL = 10 * time.Second

// Send ставит cookie с токеном и отвечает токеном и пользователем.
// Флаг Secure ставится только для запросов, пришедших по TLS.
func Send(w http.ResponseWriter, r *http.Request, status int, sess *auth.Session, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewarectx.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   Secure(r),
		SameSite: http.SameSiteLaxMode,
	})
	response.Token(w, r, status, sess.Token, sess.User)
}

// Secure сообщает, что запрос пришёл по HTTPS напрямую или через прокси.
func Secure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// Logout затирает cookie сессии короткоживущей заглушкой.
type Logout struct{}

// ServeHTTP godoc
// @Summary Выход
// @Tags Users
// @Produce json
// @Success 200 {object} response.Response
// @Router /users/logout [get]
func (Logout) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewarectx.CookieName,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(LogoutTTL),
		HttpOnly: true,
		Secure:   Secure(r),
	})
	response.Message(w, r, "Logged out")
}
