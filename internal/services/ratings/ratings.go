// Package ratings пересчитывает агрегированный рейтинг тура по его отзывам.
package ratings

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/magabrotheeeer/tour-booking/internal/cache"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
)

// ReviewAggregator выполняет конвейер агрегации по коллекции отзывов.
type ReviewAggregator interface {
	Aggregate(ctx context.Context, pipeline any, out any) error
}

// TourWriter обновляет поля тура без валидации и хуков.
type TourWriter interface {
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) error
}

// Cache сбрасывает закэшированные документы.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Stats - результат группировки отзывов тура.
type Stats struct {
	Quantity int     `bson:"nRating"`
	Average  float64 `bson:"avgRating"`
}

// Service пересчитывает ratingsQuantity и ratingsAverage тура.
type Service struct {
	reviews ReviewAggregator
	tours   TourWriter
	cache   Cache
	log     *slog.Logger
}

// New создаёт сервис. cache может быть nil.
func New(log *slog.Logger, reviews ReviewAggregator, tours TourWriter, cache Cache) *Service {
	return &Service{
		reviews: reviews,
		tours:   tours,
		cache:   cache,
		log:     log,
	}
}

// Pipeline группирует отзывы одного тура.
func Pipeline(tourID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.M{"$sum": 1}},
			{Key: "avgRating", Value: bson.M{"$avg": "$rating"}},
		}}},
	}
}

// Recompute пересчитывает статистику тура и записывает её в документ тура.
// Если отзывов не осталось, возвращаются значения по умолчанию.
func (s *Service) Recompute(ctx context.Context, tourID primitive.ObjectID) (Stats, error) {
	const op = "ratings.Recompute"

	var groups []Stats
	if err := s.reviews.Aggregate(ctx, Pipeline(tourID), &groups); err != nil {
		return Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	stats := Stats{Quantity: 0, Average: models.DefaultRatingsAverage}
	if len(groups) > 0 {
		stats = Stats{
			Quantity: groups[0].Quantity,
			Average:  models.RoundRating(groups[0].Average),
		}
	}

	set := bson.M{
		"ratingsQuantity": stats.Quantity,
		"ratingsAverage":  stats.Average,
	}
	if err := s.tours.UpdateFields(ctx, tourID, set, nil); err != nil {
		return Stats{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.TourKey(tourID.Hex()), cache.TourStatsKey); err != nil {
			s.log.Warn("failed to invalidate tour cache", slog.String("tour", tourID.Hex()), sl.Err(err))
		}
	}

	s.log.Debug("tour ratings recomputed",
		slog.String("tour", tourID.Hex()),
		slog.Int("quantity", stats.Quantity),
		slog.Float64("average", stats.Average),
	)
	return stats, nil
}

// RecomputeAll пересчитывает каждый тур из списка. Ошибки логируются,
// а первая из них возвращается после обработки всех туров.
func (s *Service) RecomputeAll(ctx context.Context, tourIDs ...primitive.ObjectID) error {
	var first error
	seen := make(map[primitive.ObjectID]bool, len(tourIDs))
	for _, id := range tourIDs {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.Recompute(ctx, id); err != nil {
			s.log.Error("failed to recompute tour ratings", slog.String("tour", id.Hex()), sl.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
