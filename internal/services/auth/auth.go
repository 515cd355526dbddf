// Package auth содержит логику регистрации, входа, проверки сессии
// и жизненного цикла сброса пароля.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/jwt"
	"github.com/magabrotheeeer/tour-booking/internal/lib/password"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/metrics"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/resource"
	"github.com/magabrotheeeer/tour-booking/internal/storage"
)

// Сообщения об ошибках, которые видит клиент.
const (
	MsgMissingCredentials = "Please provide email and password!"
	MsgIncorrectLogin     = "Incorrect email or password"
	MsgNotLoggedIn        = "You are not logged in! Please log in to get access."
	MsgInvalidToken       = "Invalid token. Please log in again!"
	MsgExpiredToken       = "Your token has expired! Please log in again."
	MsgUserGone           = "The user belonging to this token does no longer exist."
	MsgPasswordChanged    = "User recently changed password! Please log in again."
	MsgNoUserWithEmail    = "There is no user with email address."
	MsgEmailFailed        = "There was an error sending the email. Try again later!"
	MsgResetTokenInvalid  = "Token is invalid or has expired"
	MsgWrongPassword      = "Your current password is wrong."
)

// UserStore описывает операции над пользователями, нужные аутентификации.
type UserStore interface {
	Insert(ctx context.Context, doc *models.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindOne(ctx context.Context, filter bson.M) (*models.User, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) error
}

// Hasher хеширует и сверяет пароли.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, hash, password string) error
}

// Notifier доставляет пользователю ссылку для сброса пароля.
type Notifier interface {
	PasswordReset(ctx context.Context, msg models.PasswordResetMessage) error
}

// SignupInput — данные регистрации. Роль всегда user.
type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Photo           string `json:"photo"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// PasswordInput — новый пароль с подтверждением.
type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Session — выпущенный токен и пользователь, которому он принадлежит.
type Session struct {
	Token string
	User  *models.User
}

// Service — сервис аутентификации.
type Service struct {
	users    UserStore
	hasher   Hasher
	jwtMaker jwt.Maker
	notifier Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт сервис аутентификации. m может быть nil.
func New(log *slog.Logger, users UserStore, hasher Hasher, jwtMaker jwt.Maker, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		jwtMaker: jwtMaker,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Signup регистрирует пользователя и сразу выпускает для него токен.
func (s *Service) Signup(ctx context.Context, in SignupInput) (sess *Session, err error) {
	const op = "auth.Signup"
	defer func() { s.metrics.AuthEvent("signup", err) }()

	in.Email = models.NormalizeEmail(in.Email)
	if err := models.Validator().Struct(in); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		ID:       primitive.NewObjectID(),
		Name:     in.Name,
		Email:    in.Email,
		Photo:    in.Photo,
		Role:     models.RoleUser,
		Password: hash,
	}
	user.BeforeInsert(s.now())
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, resource.DuplicateError(err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user signed up", slog.String("user", user.ID.Hex()))
	return s.issue(user)
}

// Login проверяет email и пароль.
func (s *Service) Login(ctx context.Context, email, pass string) (sess *Session, err error) {
	const op = "auth.Login"
	defer func() { s.metrics.AuthEvent("login", err) }()

	if email == "" || pass == "" {
		return nil, apperr.BadRequest(MsgMissingCredentials)
	}
	user, err := s.users.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Unauthorized(MsgIncorrectLogin)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hasher.Compare(ctx, user.Password, pass); err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, MsgIncorrectLogin, err)
	}
	return s.issue(user)
}

// Authenticate проверяет токен сессии и возвращает его владельца.
func (s *Service) Authenticate(ctx context.Context, token string) (user *models.User, err error) {
	const op = "auth.Authenticate"
	defer func() { s.metrics.AuthEvent("authenticate", err) }()

	if token == "" {
		return nil, apperr.Unauthorized(MsgNotLoggedIn)
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, MsgExpiredToken, err)
		}
		return nil, apperr.Wrap(apperr.KindUnauthorized, MsgInvalidToken, err)
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, MsgInvalidToken, err)
	}

	user, err = s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Unauthorized(MsgUserGone)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperr.Unauthorized(MsgPasswordChanged)
	}
	return user, nil
}

// ForgotPassword создаёт токен сброса и отправляет ссылку на почту.
// resetBaseURL дополняется сырым токеном.
func (s *Service) ForgotPassword(ctx context.Context, email, resetBaseURL string) (err error) {
	const op = "auth.ForgotPassword"
	defer func() { s.metrics.AuthEvent("forgot_password", err) }()

	user, err := s.users.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(MsgNoUserWithEmail)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	raw, digest, expires, err := password.GenerateResetToken(s.now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	set := bson.M{"passwordResetToken": digest, "passwordResetExpires": expires}
	if err := s.users.UpdateFields(ctx, user.ID, set, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.PasswordResetMessage{
		Email:     user.Email,
		Name:      user.Name,
		ResetURL:  resetBaseURL + raw,
		ExpiresAt: expires,
	}
	if err := s.notifier.PasswordReset(ctx, msg); err != nil {
		s.log.Error("failed to dispatch password reset", slog.String("user", user.ID.Hex()), sl.Err(err))
		unset := []string{"passwordResetToken", "passwordResetExpires"}
		if clearErr := s.users.UpdateFields(ctx, user.ID, nil, unset); clearErr != nil {
			s.log.Error("failed to clear reset token", slog.String("user", user.ID.Hex()), sl.Err(clearErr))
		}
		return apperr.Dependency(MsgEmailFailed, err)
	}
	return nil
}

// ResetPassword меняет пароль по действующему токену сброса.
func (s *Service) ResetPassword(ctx context.Context, rawToken string, in PasswordInput) (sess *Session, err error) {
	const op = "auth.ResetPassword"
	defer func() { s.metrics.AuthEvent("reset_password", err) }()

	user, err := s.users.FindOne(ctx, bson.M{
		"passwordResetToken":   password.HashToken(rawToken),
		"passwordResetExpires": bson.M{"$gt": s.now()},
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.BadRequest(MsgResetTokenInvalid)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.setPassword(ctx, user, in); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// UpdatePassword меняет пароль вошедшего пользователя после проверки текущего.
func (s *Service) UpdatePassword(ctx context.Context, userID primitive.ObjectID, current string, in PasswordInput) (sess *Session, err error) {
	const op = "auth.UpdatePassword"
	defer func() { s.metrics.AuthEvent("update_password", err) }()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Unauthorized(MsgUserGone)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.hasher.Compare(ctx, user.Password, current); err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, MsgWrongPassword, err)
	}
	if err := s.setPassword(ctx, user, in); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// setPassword проверяет и хеширует новый пароль, сбрасывает токены сброса
// и отмечает время смены на секунду раньше текущего, чтобы новый токен
// был выпущен строго позже.
func (s *Service) setPassword(ctx context.Context, user *models.User, in PasswordInput) error {
	const op = "auth.setPassword"
	if err := models.Validator().Struct(in); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	changedAt := s.now().Add(-time.Second).UTC()

	set := bson.M{"password": hash, "passwordChangedAt": changedAt}
	unset := []string{"passwordResetToken", "passwordResetExpires"}
	if err := s.users.UpdateFields(ctx, user.ID, set, unset); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user.Password = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	return nil
}

func (s *Service) issue(user *models.User) (*Session, error) {
	const op = "auth.issue"
	token, err := s.jwtMaker.GenerateToken(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{Token: token, User: user}, nil
}
