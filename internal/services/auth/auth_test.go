package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/jwt"
	"github.com/magabrotheeeer/tour-booking/internal/lib/password"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/storage"
)

// Мок хранилища пользователей
type UserStoreMock struct{ mock.Mock }

func (m *UserStoreMock) Insert(ctx context.Context, doc *models.User) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *UserStoreMock) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserStoreMock) FindOne(ctx context.Context, filter bson.M) (*models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserStoreMock) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) error {
	return m.Called(ctx, id, set, unset).Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) PasswordReset(ctx context.Context, msg models.PasswordResetMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type JwtMakerMock struct{ mock.Mock }

func (m *JwtMakerMock) GenerateToken(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*jwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.CustomClaims), args.Error(1)
}

// plainHasher заменяет bcrypt в тестах
type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(_ context.Context, hash, p string) error {
	if hash != "hashed:"+p {
		return errors.New("mismatch")
	}
	return nil
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(users UserStore, maker jwt.Maker, notifier Notifier) *Service {
	s := New(sl.Discard(), users, plainHasher{}, maker, notifier, nil)
	s.now = func() time.Time { return t0 }
	return s
}

func activeUser() *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Name:     "Laura Wilson",
		Email:    "laura@example.com",
		Role:     models.RoleUser,
		Password: "hashed:pass1234",
		Active:   true,
	}
}

func TestService_Signup(t *testing.T) {
	tests := []struct {
		name      string
		in        SignupInput
		insertErr error
		check     func(t *testing.T, sess *Session, err error)
	}{
		{
			name: "success",
			in:   SignupInput{Name: "Jonas", Email: " Jonas@Example.COM ", Password: "pass1234", PasswordConfirm: "pass1234"},
			check: func(t *testing.T, sess *Session, err error) {
				require.NoError(t, err)
				assert.Equal(t, "token", sess.Token)
				assert.Equal(t, "jonas@example.com", sess.User.Email)
				assert.Equal(t, models.RoleUser, sess.User.Role)
				assert.Equal(t, "hashed:pass1234", sess.User.Password)
				assert.True(t, sess.User.Active)
				assert.Nil(t, sess.User.PasswordChangedAt)
			},
		},
		{
			name: "invalid email after trimming",
			in:   SignupInput{Name: "Jonas", Email: "  jonas at example  ", Password: "pass1234", PasswordConfirm: "pass1234"},
			check: func(t *testing.T, _ *Session, err error) {
				var verrs validator.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.Equal(t, "email", verrs[0].Field())
			},
		},
		{
			name: "passwords differ",
			in:   SignupInput{Name: "Jonas", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass4321"},
			check: func(t *testing.T, _ *Session, err error) {
				var verrs validator.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.Equal(t, "passwordConfirm", verrs[0].Field())
			},
		},
		{
			name: "short password",
			in:   SignupInput{Name: "Jonas", Email: "jonas@example.com", Password: "short", PasswordConfirm: "short"},
			check: func(t *testing.T, _ *Session, err error) {
				var verrs validator.ValidationErrors
				require.ErrorAs(t, err, &verrs)
			},
		},
		{
			name:      "email taken",
			in:        SignupInput{Name: "Jonas", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass1234"},
			insertErr: errors.Join(storage.ErrDuplicateKey, errors.New(`dup key: { email: "jonas@example.com" }`)),
			check: func(t *testing.T, _ *Session, err error) {
				assert.True(t, apperr.Is(err, apperr.KindConflict))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserStoreMock)
			maker := new(JwtMakerMock)
			users.On("Insert", mock.Anything, mock.Anything).Return(tt.insertErr).Maybe()
			maker.On("GenerateToken", mock.Anything).Return("token", nil).Maybe()

			sess, err := newService(users, maker, nil).Signup(context.Background(), tt.in)
			tt.check(t, sess, err)
		})
	}
}

func TestService_Login(t *testing.T) {
	user := activeUser()

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(u *UserStoreMock)
		kind     apperr.Kind
		wantErr  bool
	}{
		{name: "missing password", email: "laura@example.com", kind: apperr.KindBadRequest, wantErr: true, setup: func(*UserStoreMock) {}},
		{
			name: "unknown email", email: "nobody@example.com", password: "pass1234", kind: apperr.KindUnauthorized, wantErr: true,
			setup: func(u *UserStoreMock) {
				u.On("FindOne", mock.Anything, bson.M{"email": "nobody@example.com"}).Return(nil, storage.ErrNotFound)
			},
		},
		{
			name: "wrong password", email: "laura@example.com", password: "nope1234", kind: apperr.KindUnauthorized, wantErr: true,
			setup: func(u *UserStoreMock) {
				u.On("FindOne", mock.Anything, bson.M{"email": "laura@example.com"}).Return(user, nil)
			},
		},
		{
			name: "success", email: "LAURA@example.com", password: "pass1234",
			setup: func(u *UserStoreMock) {
				u.On("FindOne", mock.Anything, bson.M{"email": "laura@example.com"}).Return(user, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserStoreMock)
			maker := new(JwtMakerMock)
			tt.setup(users)
			maker.On("GenerateToken", user.ID.Hex()).Return("token", nil).Maybe()

			sess, err := newService(users, maker, nil).Login(context.Background(), tt.email, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, tt.kind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "token", sess.Token)
		})
	}
}

func TestService_Login_SameMessageForUnknownAndWrong(t *testing.T) {
	users := new(UserStoreMock)
	user := activeUser()
	users.On("FindOne", mock.Anything, bson.M{"email": "nobody@example.com"}).Return(nil, storage.ErrNotFound)
	users.On("FindOne", mock.Anything, bson.M{"email": "laura@example.com"}).Return(user, nil)
	svc := newService(users, new(JwtMakerMock), nil)

	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "pass1234")
	_, errWrong := svc.Login(context.Background(), "laura@example.com", "wrong")

	var a, b *apperr.Error
	require.ErrorAs(t, errUnknown, &a)
	require.ErrorAs(t, errWrong, &b)
	assert.Equal(t, MsgIncorrectLogin, a.Message)
	assert.Equal(t, a.Message, b.Message)
}

func TestService_Authenticate(t *testing.T) {
	user := activeUser()
	claimsAt := func(iat time.Time) *jwt.CustomClaims {
		return &jwt.CustomClaims{
			ID:               user.ID.Hex(),
			RegisteredClaims: gojwt.RegisteredClaims{IssuedAt: gojwt.NewNumericDate(iat)},
		}
	}
	changed := func(at time.Time) *models.User {
		u := *user
		u.PasswordChangedAt = &at
		return &u
	}

	tests := []struct {
		name    string
		token   string
		setup   func(u *UserStoreMock, m *JwtMakerMock)
		wantMsg string
	}{
		{name: "no token", token: "", setup: func(*UserStoreMock, *JwtMakerMock) {}, wantMsg: MsgNotLoggedIn},
		{
			name: "invalid token", token: "bad",
			setup: func(_ *UserStoreMock, m *JwtMakerMock) {
				m.On("ParseToken", "bad").Return(nil, jwt.ErrInvalidToken)
			},
			wantMsg: MsgInvalidToken,
		},
		{
			name: "expired token", token: "old",
			setup: func(_ *UserStoreMock, m *JwtMakerMock) {
				m.On("ParseToken", "old").Return(nil, jwt.ErrExpiredToken)
			},
			wantMsg: MsgExpiredToken,
		},
		{
			name: "user gone", token: "tok",
			setup: func(u *UserStoreMock, m *JwtMakerMock) {
				m.On("ParseToken", "tok").Return(claimsAt(t0), nil)
				u.On("Get", mock.Anything, user.ID).Return(nil, storage.ErrNotFound)
			},
			wantMsg: MsgUserGone,
		},
		{
			name: "password changed after token", token: "tok",
			setup: func(u *UserStoreMock, m *JwtMakerMock) {
				m.On("ParseToken", "tok").Return(claimsAt(t0), nil)
				u.On("Get", mock.Anything, user.ID).Return(changed(t0.Add(time.Hour)), nil)
			},
			wantMsg: MsgPasswordChanged,
		},
		{
			name: "password changed before token", token: "tok",
			setup: func(u *UserStoreMock, m *JwtMakerMock) {
				m.On("ParseToken", "tok").Return(claimsAt(t0), nil)
				u.On("Get", mock.Anything, user.ID).Return(changed(t0.Add(-time.Second)), nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserStoreMock)
			maker := new(JwtMakerMock)
			tt.setup(users, maker)

			got, err := newService(users, maker, nil).Authenticate(context.Background(), tt.token)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, user.ID, got.ID)
				return
			}
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindUnauthorized, appErr.Kind)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestService_SignupThenAuthenticate(t *testing.T) {
	users := new(UserStoreMock)
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	svc := New(sl.Discard(), users, plainHasher{}, maker, nil, nil)

	var stored *models.User
	users.On("Insert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.User)
	}).Return(nil)

	sess, err := svc.Signup(context.Background(), SignupInput{
		Name: "Jonas", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass1234",
	})
	require.NoError(t, err)

	users.On("Get", mock.Anything, stored.ID).Return(stored, nil)

	got, err := svc.Authenticate(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
}

func TestService_ForgotPassword(t *testing.T) {
	user := activeUser()

	t.Run("unknown email", func(t *testing.T) {
		users := new(UserStoreMock)
		users.On("FindOne", mock.Anything, mock.Anything).Return(nil, storage.ErrNotFound)

		err := newService(users, nil, new(NotifierMock)).ForgotPassword(context.Background(), "x@example.com", "http://h/")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("sends link and stores digest", func(t *testing.T) {
		users := new(UserStoreMock)
		notifier := new(NotifierMock)
		users.On("FindOne", mock.Anything, bson.M{"email": user.Email}).Return(user, nil)

		var digest string
		users.On("UpdateFields", mock.Anything, user.ID, mock.Anything, []string(nil)).Run(func(args mock.Arguments) {
			set := args.Get(2).(bson.M)
			digest = set["passwordResetToken"].(string)
			assert.Equal(t, t0.Add(password.ResetTokenTTL), set["passwordResetExpires"])
		}).Return(nil).Once()

		var sent models.PasswordResetMessage
		notifier.On("PasswordReset", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			sent = args.Get(1).(models.PasswordResetMessage)
		}).Return(nil).Once()

		err := newService(users, nil, notifier).ForgotPassword(context.Background(), user.Email, "http://localhost/api/v1/users/resetPassword/")
		require.NoError(t, err)

		require.Contains(t, sent.ResetURL, "/resetPassword/")
		raw := sent.ResetURL[len("http://localhost/api/v1/users/resetPassword/"):]
		assert.Len(t, raw, 64)
		assert.Equal(t, password.HashToken(raw), digest)
		assert.NotEqual(t, raw, digest)
		users.AssertExpectations(t)
	})

	t.Run("delivery failure clears the token", func(t *testing.T) {
		users := new(UserStoreMock)
		notifier := new(NotifierMock)
		users.On("FindOne", mock.Anything, mock.Anything).Return(user, nil)
		users.On("UpdateFields", mock.Anything, user.ID, mock.Anything, []string(nil)).Return(nil).Once()
		users.On("UpdateFields", mock.Anything, user.ID, bson.M(nil),
			[]string{"passwordResetToken", "passwordResetExpires"}).Return(nil).Once()
		notifier.On("PasswordReset", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		err := newService(users, nil, notifier).ForgotPassword(context.Background(), user.Email, "http://h/")
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindDependency, appErr.Kind)
		assert.Equal(t, MsgEmailFailed, appErr.Message)
		users.AssertExpectations(t)
	})
}

func TestService_ResetPassword(t *testing.T) {
	user := activeUser()
	raw := "abc123"
	filter := bson.M{
		"passwordResetToken":   password.HashToken(raw),
		"passwordResetExpires": bson.M{"$gt": t0},
	}

	t.Run("invalid or expired", func(t *testing.T) {
		users := new(UserStoreMock)
		users.On("FindOne", mock.Anything, filter).Return(nil, storage.ErrNotFound)

		_, err := newService(users, nil, nil).ResetPassword(context.Background(), raw, PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindBadRequest, appErr.Kind)
		assert.Equal(t, MsgResetTokenInvalid, appErr.Message)
	})

	t.Run("success", func(t *testing.T) {
		users := new(UserStoreMock)
		maker := new(JwtMakerMock)
		u := *user
		users.On("FindOne", mock.Anything, filter).Return(&u, nil)
		users.On("UpdateFields", mock.Anything, user.ID,
			bson.M{"password": "hashed:newpass123", "passwordChangedAt": t0.Add(-time.Second)},
			[]string{"passwordResetToken", "passwordResetExpires"}).Return(nil).Once()
		maker.On("GenerateToken", user.ID.Hex()).Return("fresh", nil)

		sess, err := newService(users, maker, nil).ResetPassword(context.Background(), raw, PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
		require.NoError(t, err)
		assert.Equal(t, "fresh", sess.Token)
		require.NotNil(t, sess.User.PasswordChangedAt)
		assert.True(t, sess.User.PasswordChangedAt.Before(t0))
		users.AssertExpectations(t)
	})
}

func TestService_UpdatePassword(t *testing.T) {
	user := activeUser()

	t.Run("wrong current password", func(t *testing.T) {
		users := new(UserStoreMock)
		users.On("Get", mock.Anything, user.ID).Return(user, nil)

		_, err := newService(users, nil, nil).UpdatePassword(context.Background(), user.ID, "nope",
			PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindUnauthorized, appErr.Kind)
		assert.Equal(t, MsgWrongPassword, appErr.Message)
		users.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success", func(t *testing.T) {
		users := new(UserStoreMock)
		maker := new(JwtMakerMock)
		u := *user
		users.On("Get", mock.Anything, user.ID).Return(&u, nil)
		users.On("UpdateFields", mock.Anything, user.ID, mock.Anything, mock.Anything).Return(nil).Once()
		maker.On("GenerateToken", user.ID.Hex()).Return("fresh", nil)

		sess, err := newService(users, maker, nil).UpdatePassword(context.Background(), user.ID, "pass1234",
			PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
		require.NoError(t, err)
		assert.Equal(t, "hashed:newpass123", sess.User.Password)
	})
}
