// Package review управляет отзывами и после каждой записи пересчитывает
// рейтинг затронутых туров.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/services/resource"
)

// Recomputer пересчитывает рейтинг тура.
type Recomputer interface {
	RecomputeAll(ctx context.Context, tourIDs ...primitive.ObjectID) error
}

// Store — операции над коллекцией отзывов, которых нет в resource.Repository.
type Store interface {
	resource.Repository[models.Review]
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	Distinct(ctx context.Context, field string, filter bson.M) ([]any, error)
}

// Service — сервис отзывов поверх обобщённого сервиса ресурса.
type Service struct {
	*resource.Service[models.Review, *models.Review]
	store   Store
	ratings Recomputer
	log     *slog.Logger
}

// New создаёт сервис отзывов.
func New(log *slog.Logger, store Store, ratings Recomputer, opts ...resource.Option) *Service {
	return &Service{
		Service: resource.New[models.Review](store, "review", opts...),
		store:   store,
		ratings: ratings,
		log:     log,
	}
}

// Create сохраняет отзыв и пересчитывает рейтинг его тура.
func (s *Service) Create(ctx context.Context, doc *models.Review) (*models.Review, error) {
	created, err := s.Service.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.recompute(ctx, created.Tour)
	return created, nil
}

// Update применяет патч. Если отзыв перенесён в другой тур, пересчитываются оба тура.
func (s *Service) Update(ctx context.Context, id string, patch json.RawMessage) (*models.Review, error) {
	before, after, err := s.Service.UpdateCaptured(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.recompute(ctx, before.Tour, after.Tour)
	return after, nil
}

// Delete удаляет отзыв и пересчитывает рейтинг тура, к которому он относился.
func (s *Service) Delete(ctx context.Context, id string) (*models.Review, error) {
	deleted, err := s.Service.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recompute(ctx, deleted.Tour)
	return deleted, nil
}

// DeleteByTour удаляет все отзывы тура.
func (s *Service) DeleteByTour(ctx context.Context, tourID primitive.ObjectID) (int64, error) {
	const op = "review.DeleteByTour"
	n, err := s.store.DeleteMany(ctx, bson.M{"tour": tourID})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// DeleteByUser удаляет все отзывы пользователя и пересчитывает рейтинг туров,
// где они были оставлены.
func (s *Service) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	const op = "review.DeleteByUser"
	filter := bson.M{"user": userID}

	vals, err := s.store.Distinct(ctx, "tour", filter)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := s.store.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tours := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(primitive.ObjectID); ok {
			tours = append(tours, id)
		}
	}
	s.recompute(ctx, tours...)
	return n, nil
}

// recompute не возвращает ошибку: отзыв уже записан, а рейтинг
// догонит состояние при следующей записи.
func (s *Service) recompute(ctx context.Context, tourIDs ...primitive.ObjectID) {
	if s.ratings == nil {
		return
	}
	if err := s.ratings.RecomputeAll(ctx, tourIDs...); err != nil {
		s.log.Error("ratings recompute failed", sl.Err(err))
	}
}
