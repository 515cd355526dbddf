package users

import (
	"bytes"
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
	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/user"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) UpdateMe(ctx context.Context, userID primitive.ObjectID, body json.RawMessage) (*models.User, error) {
	args := m.Called(ctx, userID, string(body))
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ServiceMock) DeactivateMe(ctx context.Context, userID primitive.ObjectID) error {
	return m.Called(ctx, userID).Error(0)
}

func withUser(req *http.Request, u *models.User) *http.Request {
	return req.WithContext(middlewarectx.WithUser(req.Context(), u))
}

func TestMeID(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID()}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Empty(t, MeID(req))
	assert.Equal(t, u.ID.Hex(), MeID(withUser(req, u)))
}

func TestHandler_UpdateMe(t *testing.T) {
	me := &models.User{ID: primitive.NewObjectID(), Name: "Old"}

	tests := []struct {
		name     string
		body     string
		setup    func(m *ServiceMock)
		wantCode int
		wantMsg  string
	}{
		{
			name: "name changed",
			body: `{"name":"New"}`,
			setup: func(m *ServiceMock) {
				m.On("UpdateMe", mock.Anything, me.ID, `{"name":"New"}`).Return(&models.User{ID: me.ID, Name: "New"}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "password rejected",
			body: `{"password":"x"}`,
			setup: func(m *ServiceMock) {
				m.On("UpdateMe", mock.Anything, me.ID, `{"password":"x"}`).Return(nil, apperr.BadRequest(user.MsgNotForPasswords))
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  user.MsgNotForPasswords,
		},
		{
			name:     "empty body",
			body:     "",
			setup:    func(*ServiceMock) {},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			req := withUser(httptest.NewRequest(http.MethodPatch, "/updateMe", bytes.NewBufferString(tt.body)), me)
			rr := httptest.NewRecorder()
			New(sl.Discard(), svc, 0).UpdateMe(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp["message"])
			} else {
				data := resp["data"].(map[string]any)
				assert.Equal(t, "New", data["user"].(map[string]any)["name"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_DeleteMe(t *testing.T) {
	me := &models.User{ID: primitive.NewObjectID()}
	svc := new(ServiceMock)
	svc.On("DeactivateMe", mock.Anything, me.ID).Return(nil)

	rr := httptest.NewRecorder()
	New(sl.Discard(), svc, 0).DeleteMe(rr, withUser(httptest.NewRequest(http.MethodDelete, "/deleteMe", nil), me))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	svc.AssertExpectations(t)

	rr = httptest.NewRecorder()
	New(sl.Discard(), svc, 0).DeleteMe(rr, httptest.NewRequest(http.MethodDelete, "/deleteMe", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandler_CreateUser(t *testing.T) {
	rr := httptest.NewRecorder()
	New(sl.Discard(), new(ServiceMock), 0).CreateUser(rr, httptest.NewRequest(http.MethodPost, "/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, MsgUseSignup, resp["message"])
}

func TestHandler_CreateUser_HiddenDetailsStillShowMessage(t *testing.T) {
	response.SetExposeErrors(false)
	rr := httptest.NewRecorder()
	New(sl.Discard(), new(ServiceMock), 0).CreateUser(rr, httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString(`{"name":"x"}`)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, MsgUseSignup, resp["message"])
}
