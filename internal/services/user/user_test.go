package user

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
)

type StoreMock struct{ mock.Mock }

func (m *StoreMock) Find(ctx context.Context, q query.Query) ([]models.User, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *StoreMock) FindByID(ctx context.Context, id primitive.ObjectID, _ ...query.Populate) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) Insert(ctx context.Context, doc *models.User) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *StoreMock) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) (*models.User, error) {
	args := m.Called(ctx, id, set, unset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) DeleteByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *StoreMock) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) error {
	return m.Called(ctx, id, set, unset).Error(0)
}

type ReviewsMock struct{ mock.Mock }

func (m *ReviewsMock) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func sampleUser() *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Name:     "Leo Gillespie",
		Email:    "leo@example.com",
		Role:     models.RoleGuide,
		Password: "hash",
		Active:   true,
	}
}

func TestService_UpdateMe_RejectsPasswords(t *testing.T) {
	svc := New(sl.Discard(), new(StoreMock), nil)

	for _, body := range []string{`{"password":"x"}`, `{"name":"n","passwordConfirm":"x"}`} {
		_, err := svc.UpdateMe(context.Background(), primitive.NewObjectID(), json.RawMessage(body))
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindBadRequest, appErr.Kind)
		assert.Equal(t, MsgNotForPasswords, appErr.Message)
	}
}

func TestService_UpdateMe_OnlyNameAndEmail(t *testing.T) {
	store := new(StoreMock)
	svc := New(sl.Discard(), store, nil)
	u := sampleUser()

	store.On("Get", mock.Anything, u.ID).Return(u, nil).Once()
	store.On("UpdateByID", mock.Anything, u.ID, mock.MatchedBy(func(set bson.M) bool {
		_, hasName := set["name"]
		_, hasEmail := set["email"]
		_, hasRole := set["role"]
		return hasName && hasEmail && !hasRole && len(set) == 2 &&
			set["email"].(bson.RawValue).StringValue() == "new@example.com"
	}), []string(nil)).Return(u, nil).Once()
	store.On("FindByID", mock.Anything, u.ID).Return(u, nil).Once()

	body := json.RawMessage(`{"name":"Leo G","email":" NEW@example.com","role":"admin","active":false}`)
	_, err := svc.UpdateMe(context.Background(), u.ID, body)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestService_DeactivateMe(t *testing.T) {
	store := new(StoreMock)
	svc := New(sl.Discard(), store, nil)
	id := primitive.NewObjectID()

	store.On("UpdateFields", mock.Anything, id, bson.M{"active": false}, []string(nil)).Return(nil).Once()
	require.NoError(t, svc.DeactivateMe(context.Background(), id))

	store.On("UpdateFields", mock.Anything, id, mock.Anything, mock.Anything).Return(errors.New("boom")).Once()
	assert.Error(t, svc.DeactivateMe(context.Background(), id))
}

func TestService_Delete_CascadesReviews(t *testing.T) {
	store := new(StoreMock)
	reviews := new(ReviewsMock)
	svc := New(sl.Discard(), store, reviews)
	u := sampleUser()

	store.On("DeleteByID", mock.Anything, u.ID).Return(u, nil).Once()
	reviews.On("DeleteByUser", mock.Anything, u.ID).Return(int64(2), nil).Once()

	deleted, err := svc.Delete(context.Background(), u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, u.ID, deleted.ID)
	reviews.AssertExpectations(t)
}
