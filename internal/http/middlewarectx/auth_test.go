package middlewarectx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
)

type AuthMock struct{ mock.Mock }

func (m *AuthMock) Authenticate(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func TestProtect(t *testing.T) {
	user := &models.User{ID: primitive.NewObjectID(), Name: "Guide", Role: models.RoleGuide}

	tests := []struct {
		name       string
		header     string
		cookie     string
		token      string
		mockUser   *models.User
		mockErr    error
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "no credentials",
			token:      "",
			mockErr:    apperr.Unauthorized("You are not logged in! Please log in to get access."),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer header",
			header:     "Bearer good",
			token:      "good",
			mockUser:   user,
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "cookie",
			cookie:     "from-cookie",
			token:      "from-cookie",
			mockUser:   user,
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "header wins over cookie",
			header:     "Bearer header-token",
			cookie:     "cookie-token",
			token:      "header-token",
			mockUser:   user,
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "password changed after token",
			header:     "Bearer stale",
			token:      "stale",
			mockErr:    apperr.Unauthorized("User recently changed password! Please log in again."),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(AuthMock)
			auth.On("Authenticate", mock.Anything, tt.token).Return(tt.mockUser, tt.mockErr).Once()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, ok := middlewarectx.UserFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, user.ID, got.ID)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: middlewarectx.CookieName, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			middlewarectx.Protect(auth, sl.Discard())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			auth.AssertExpectations(t)
		})
	}
}

func TestRestrictTo(t *testing.T) {
	tests := []struct {
		name       string
		user       *models.User
		wantStatus int
	}{
		{name: "allowed role", user: &models.User{Role: models.RoleAdmin}, wantStatus: http.StatusOK},
		{name: "other allowed role", user: &models.User{Role: models.RoleLeadGuide}, wantStatus: http.StatusOK},
		{name: "denied role", user: &models.User{Role: models.RoleUser}, wantStatus: http.StatusForbidden},
		{name: "no user in context", user: nil, wantStatus: http.StatusUnauthorized},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	guard := middlewarectx.RestrictTo(sl.Discard(), models.RoleAdmin, models.RoleLeadGuide)(next)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/tours/1", nil)
			if tt.user != nil {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), tt.user))
			}
			rr := httptest.NewRecorder()
			guard.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusForbidden {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, "fail", body["status"])
				assert.Equal(t, middlewarectx.MsgForbidden, body["message"])
			}
		})
	}
}
