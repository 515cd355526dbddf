// Package tour содержит сервис туров: кэшируемое чтение, каскадное удаление
// отзывов и отчёты на конвейерах агрегации.
package tour

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/cache"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
	"github.com/magabrotheeeer/tour-booking/internal/services/resource"
)

// Store — хранилище туров.
type Store interface {
	resource.Repository[models.Tour]
	Scope() bson.M
	Aggregate(ctx context.Context, pipeline any, out any) error
}

// Cache — кэш документов и отчётов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// ReviewCleaner удаляет отзывы удалённого тура.
type ReviewCleaner interface {
	DeleteByTour(ctx context.Context, tourID primitive.ObjectID) (int64, error)
}

// Deps — необязательные зависимости сервиса.
type Deps struct {
	Cache    Cache
	CacheTTL time.Duration
	Reviews  ReviewCleaner
	// Populate — подстановки при чтении одного тура (отзывы).
	Populate []query.Populate
}

// Service — сервис туров.
type Service struct {
	*resource.Service[models.Tour, *models.Tour]
	store    Store
	cache    Cache
	cacheTTL time.Duration
	reviews  ReviewCleaner
	populate []query.Populate
	log      *slog.Logger
}

// New создаёт сервис туров.
func New(log *slog.Logger, store Store, deps Deps, opts ...resource.Option) *Service {
	return &Service{
		Service:  resource.New[models.Tour](store, "tour", opts...),
		store:    store,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		reviews:  deps.Reviews,
		populate: deps.Populate,
		log:      log,
	}
}

// Get возвращает тур вместе с отзывами. Без дополнительных подстановок
// результат берётся из кэша.
func (s *Service) Get(ctx context.Context, id string, populate ...query.Populate) (*models.Tour, error) {
	if len(populate) > 0 {
		return s.Service.Get(ctx, id, populate...)
	}
	if s.cache == nil {
		return s.Service.Get(ctx, id, s.populate...)
	}

	key := cache.TourKey(id)
	var cached models.Tour
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read tour from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	doc, err := s.Service.Get(ctx, id, s.populate...)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, doc, s.cacheTTL); err != nil {
		s.log.Warn("failed to cache tour", slog.String("key", key), sl.Err(err))
	}
	return doc, nil
}

// Create сохраняет тур и сбрасывает закэшированную статистику.
func (s *Service) Create(ctx context.Context, doc *models.Tour) (*models.Tour, error) {
	created, err := s.Service.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.TourStatsKey)
	return created, nil
}

// Update применяет патч и сбрасывает кэш тура.
func (s *Service) Update(ctx context.Context, id string, patch json.RawMessage) (*models.Tour, error) {
	doc, err := s.Service.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.TourKey(id), cache.TourStatsKey)
	return doc, nil
}

// Delete удаляет тур и его отзывы.
func (s *Service) Delete(ctx context.Context, id string) (*models.Tour, error) {
	const op = "tour.Delete"
	doc, err := s.Service.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.TourKey(id), cache.TourStatsKey)

	if s.reviews != nil {
		n, err := s.reviews.DeleteByTour(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("tour reviews deleted", slog.String("tour", id), slog.Int64("count", n))
	}
	return doc, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cache", slog.Any("keys", keys), sl.Err(err))
	}
}
