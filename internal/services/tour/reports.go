package tour

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/magabrotheeeer/tour-booking/internal/cache"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/lib/month"
	"github.com/magabrotheeeer/tour-booking/internal/lib/sl"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
)

// Радиус Земли и множители перевода метров для единиц расстояния.
const (
	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1

	metersToMi = 0.000621
	metersToKm = 0.001

	// StatsMinRating — нижняя граница рейтинга для статистики по сложности.
	StatsMinRating = 4.5
	monthlyPlanMax = 12
)

// MsgLatLngFormat — ответ на неверный параметр latlng.
const MsgLatLngFormat = "Please provide latitude and longitude in the format lat,lng."

// DifficultyStats — статистика туров одной сложности.
type DifficultyStats struct {
	Difficulty string  `json:"_id" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

// MonthPlan — число стартов туров в одном месяце.
type MonthPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

// Distance — расстояние от точки до старта тура.
type Distance struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Distance float64            `json:"distance" bson:"distance"`
}

// Point — координаты, разобранные из параметра latlng.
type Point struct {
	Lat, Lng float64
}

// ParseLatLng разбирает строку вида "lat,lng".
func ParseLatLng(latlng string) (Point, error) {
	errFormat := apperr.BadRequest(MsgLatLngFormat)
	lat, lng, ok := strings.Cut(latlng, ",")
	if !ok {
		return Point{}, errFormat
	}
	la, err := parseFinite(lat)
	if err != nil || la < -90 || la > 90 {
		return Point{}, errFormat
	}
	lo, err := parseFinite(lng)
	if err != nil || lo < -180 || lo > 180 {
		return Point{}, errFormat
	}
	return Point{Lat: la, Lng: lo}, nil
}

// parseFinite разбирает число, отвергая NaN и бесконечности.
func parseFinite(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return f, nil
}

// RadiusRadians переводит расстояние в радианы для $centerSphere.
// Единица "mi" означает мили, любая другая — километры.
func RadiusRadians(distance float64, unit string) float64 {
	if unit == "mi" {
		return distance / earthRadiusMi
	}
	return distance / earthRadiusKm
}

// DistanceMultiplier переводит метры $geoNear в заданную единицу.
func DistanceMultiplier(unit string) float64 {
	if unit == "mi" {
		return metersToMi
	}
	return metersToKm
}

// StatsPipeline группирует популярные туры по сложности.
func StatsPipeline(scope bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: query.And(scope, bson.M{"ratingsAverage": bson.M{"$gte": StatsMinRating}})}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toUpper": "$difficulty"}},
			{Key: "numTours", Value: bson.M{"$sum": 1}},
			{Key: "numRatings", Value: bson.M{"$sum": "$ratingsQuantity"}},
			{Key: "avgRating", Value: bson.M{"$avg": "$ratingsAverage"}},
			{Key: "avgPrice", Value: bson.M{"$avg": "$price"}},
			{Key: "minPrice", Value: bson.M{"$min": "$price"}},
			{Key: "maxPrice", Value: bson.M{"$max": "$price"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}
}

// MonthlyPlanPipeline считает старты туров по месяцам года.
func MonthlyPlanPipeline(scope bson.M, year int) mongo.Pipeline {
	from, to := month.Bounds(year)
	return mongo.Pipeline{
		{{Key: "$match", Value: scope}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lt": to}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$month": "$startDates"}},
			{Key: "numTourStarts", Value: bson.M{"$sum": 1}},
			{Key: "tours", Value: bson.M{"$push": "$name"}},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}}}},
		{{Key: "$limit", Value: monthlyPlanMax}},
	}
}

// WithinFilter отбирает туры, чья точка старта лежит в круге.
func WithinFilter(center Point, radius float64) bson.M {
	return bson.M{"startLocation": bson.M{
		"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{center.Lng, center.Lat}, radius},
		},
	}}
}

// DistancesPipeline сортирует туры по расстоянию от точки.
// $geoNear обязан быть первой стадией, поэтому scope передаётся в его query.
func DistancesPipeline(scope bson.M, from Point, unit string) mongo.Pipeline {
	near := bson.D{
		{Key: "near", Value: bson.M{"type": "Point", "coordinates": bson.A{from.Lng, from.Lat}}},
		{Key: "distanceField", Value: "distance"},
		{Key: "distanceMultiplier", Value: DistanceMultiplier(unit)},
		{Key: "spherical", Value: true},
	}
	if len(scope) > 0 {
		near = append(near, bson.E{Key: "query", Value: scope})
	}
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: near}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
}

// Stats возвращает статистику по сложности. Результат кэшируется.
func (s *Service) Stats(ctx context.Context) ([]DifficultyStats, error) {
	const op = "tour.Stats"

	if s.cache != nil {
		var cached []DifficultyStats
		found, err := s.cache.Get(ctx, cache.TourStatsKey, &cached)
		if err != nil {
			s.log.Warn("failed to read tour stats from cache", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	stats := make([]DifficultyStats, 0)
	if err := s.store.Aggregate(ctx, StatsPipeline(s.store.Scope()), &stats); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.TourStatsKey, stats, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache tour stats", sl.Err(err))
		}
	}
	return stats, nil
}

// MonthlyPlan возвращает загрузку по месяцам для года из пути запроса.
func (s *Service) MonthlyPlan(ctx context.Context, yearParam string) ([]MonthPlan, error) {
	const op = "tour.MonthlyPlan"
	year, err := strconv.Atoi(yearParam)
	if err != nil || !month.ValidYear(year) {
		return nil, apperr.BadRequest("Invalid year: " + yearParam)
	}

	plan := make([]MonthPlan, 0)
	if err := s.store.Aggregate(ctx, MonthlyPlanPipeline(s.store.Scope(), year), &plan); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// Within возвращает туры в радиусе distance от точки latlng.
func (s *Service) Within(ctx context.Context, distanceParam, latlng, unit string) ([]models.Tour, error) {
	const op = "tour.Within"
	center, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	distance, err := parseFinite(distanceParam)
	if err != nil || distance < 0 {
		return nil, apperr.BadRequest("Invalid distance: " + distanceParam)
	}

	q := query.Query{
		Filter:     WithinFilter(center, RadiusRadians(distance, unit)),
		Projection: query.DefaultProjection(),
	}
	tours, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("tours within radius", slog.Float64("distance", distance), slog.String("unit", unit), slog.Int("count", len(tours)))
	return tours, nil
}

// Distances возвращает расстояния от точки до каждого тура, ближайшие первыми.
func (s *Service) Distances(ctx context.Context, latlng, unit string) ([]Distance, error) {
	const op = "tour.Distances"
	from, err := ParseLatLng(latlng)
	if err != nil {
		return nil, err
	}

	out := make([]Distance, 0)
	if err := s.store.Aggregate(ctx, DistancesPipeline(s.store.Scope(), from, unit), &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
