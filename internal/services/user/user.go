// Package user содержит операции над пользователями: админские CRUD
// и операции над собственным профилем.
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/resource"
)

// MsgNotForPasswords — ответ на попытку сменить пароль через updateMe.
const MsgNotForPasswords = "This route is not for password updates. Please use /updateMyPassword."

// selfEditable — поля профиля, которые пользователь меняет сам.
var selfEditable = []string{"name", "email"}

// Store — хранилище пользователей.
type Store interface {
	resource.Repository[models.User]
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) error
}

// ReviewCleaner удаляет отзывы удалённого пользователя.
type ReviewCleaner interface {
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Service — сервис пользователей.
type Service struct {
	*resource.Service[models.User, *models.User]
	store   Store
	reviews ReviewCleaner
	log     *slog.Logger
}

// New создаёт сервис пользователей. reviews может быть nil.
func New(log *slog.Logger, store Store, reviews ReviewCleaner, opts ...resource.Option) *Service {
	return &Service{
		Service: resource.New[models.User](store, "user", opts...),
		store:   store,
		reviews: reviews,
		log:     log,
	}
}

// UpdateMe меняет имя и email пользователя. Остальные ключи тела игнорируются.
func (s *Service) UpdateMe(ctx context.Context, userID primitive.ObjectID, body json.RawMessage) (*models.User, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil || keys == nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err)
	}
	if _, ok := keys["password"]; ok {
		return nil, apperr.BadRequest(MsgNotForPasswords)
	}
	if _, ok := keys["passwordConfirm"]; ok {
		return nil, apperr.BadRequest(MsgNotForPasswords)
	}

	filtered := make(map[string]json.RawMessage, len(selfEditable))
	for _, k := range selfEditable {
		if v, ok := keys[k]; ok {
			filtered[k] = v
		}
	}
	patch, err := json.Marshal(filtered)
	if err != nil {
		return nil, fmt.Errorf("user.UpdateMe: %w", err)
	}
	return s.Service.Update(ctx, userID.Hex(), patch)
}

// DeactivateMe помечает пользователя неактивным. Документ остаётся в базе,
// но исчезает из всех выборок.
func (s *Service) DeactivateMe(ctx context.Context, userID primitive.ObjectID) error {
	const op = "user.DeactivateMe"
	if err := s.store.UpdateFields(ctx, userID, bson.M{"active": false}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user deactivated", slog.String("user", userID.Hex()))
	return nil
}

// Delete удаляет пользователя вместе с его отзывами.
func (s *Service) Delete(ctx context.Context, id string) (*models.User, error) {
	const op = "user.Delete"
	deleted, err := s.Service.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.reviews != nil {
		n, err := s.reviews.DeleteByUser(ctx, deleted.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("user reviews deleted", slog.String("user", id), slog.Int64("count", n))
	}
	return deleted, nil
}
