package session

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/auth"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		forwarded  string
		wantSecure bool
	}{
		{name: "plain http"},
		{name: "direct tls", tls: true, wantSecure: true},
		{name: "behind https proxy", forwarded: "https", wantSecure: true},
		{name: "behind http proxy", forwarded: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}
			rr := httptest.NewRecorder()
			sess := &auth.Session{Token: "tok", User: &models.User{Name: "Jonas", Password: "secret-hash"}}

			Send(rr, req, http.StatusCreated, sess, 90*24*time.Hour)

			assert.Equal(t, http.StatusCreated, rr.Code)
			cookies := rr.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "jwt", cookies[0].Name)
			assert.Equal(t, "tok", cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly)
			assert.Equal(t, tt.wantSecure, cookies[0].Secure)
			assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), cookies[0].Expires, time.Minute)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "tok", body["token"])
			assert.NotContains(t, rr.Body.String(), "secret-hash")
		})
	}
}

func TestLogout(t *testing.T) {
	rr := httptest.NewRecorder()
	Logout{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "loggedout", cookies[0].Value)
}
