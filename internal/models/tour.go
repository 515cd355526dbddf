package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
)

// DefaultRatingsAverage — рейтинг тура без отзывов.
const DefaultRatingsAverage = 4.5

// GeoPoint — точка GeoJSON с описанием места.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"omitempty,len=2"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Day         int       `json:"day,omitempty" bson:"day,omitempty"`
}

// Tour описывает тур.
type Tour struct {
	ID              primitive.ObjectID `json:"id" bson:"_id"`
	Name            string             `json:"name" bson:"name" validate:"required,min=10,max=40"`
	Slug            string             `json:"slug" bson:"slug"`
	Duration        float64            `json:"duration" bson:"duration" validate:"required,gt=0"`
	MaxGroupSize    int                `json:"maxGroupSize" bson:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string             `json:"difficulty" bson:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64            `json:"ratingsAverage" bson:"ratingsAverage" validate:"min=1,max=5"`
	RatingsQuantity int                `json:"ratingsQuantity" bson:"ratingsQuantity" validate:"min=0"`
	Price           float64            `json:"price" bson:"price" validate:"required,gt=0"`
	PriceDiscount   *float64           `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty"`
	Summary         string             `json:"summary" bson:"summary" validate:"required"`
	Description     string             `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string             `json:"imageCover" bson:"imageCover" validate:"required"`
	Images          []string           `json:"images" bson:"images"`
	CreatedAt       time.Time          `json:"-" bson:"createdAt"`
	StartDates      []time.Time        `json:"startDates" bson:"startDates"`
	SecretTour      bool               `json:"secretTour" bson:"secretTour"`
	StartLocation   *GeoPoint          `json:"startLocation,omitempty" bson:"startLocation,omitempty"`
	Locations       []GeoPoint         `json:"locations" bson:"locations" validate:"dive"`
	Guides          []Ref[User]        `json:"guides" bson:"guides"`
	Reviews         []Review           `json:"reviews,omitempty" bson:"reviews,omitempty"`
	Version         int                `json:"-" bson:"__v"`
}

// MarshalJSON добавляет вычисляемое поле durationWeeks.
func (t Tour) MarshalJSON() ([]byte, error) {
	type alias Tour
	return json.Marshal(struct {
		alias
		DurationWeeks float64 `json:"durationWeeks"`
	}{alias(t), t.Duration / 7})
}

// SetID задаёт идентификатор нового документа.
func (t *Tour) SetID(id primitive.ObjectID) {
	t.ID = id
}

// BeforeInsert проставляет значения по умолчанию, slug и дату создания.
func (t *Tour) BeforeInsert(now time.Time) {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = slug.Make(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	t.RatingsAverage = RoundRating(t.RatingsAverage)
	t.CreatedAt = now.UTC()
	t.Reviews = nil
	t.normalizeGeo()
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.StartDates == nil {
		t.StartDates = []time.Time{}
	}
	if t.Locations == nil {
		t.Locations = []GeoPoint{}
	}
	if t.Guides == nil {
		t.Guides = []Ref[User]{}
	}
}

// BeforeUpdate пересчитывает производные поля и возвращает их ключи.
func (t *Tour) BeforeUpdate(patched map[string]bool) []string {
	var extra []string
	if patched["name"] {
		t.Name = strings.TrimSpace(t.Name)
		t.Slug = slug.Make(t.Name)
		extra = append(extra, "slug")
	}
	if patched["summary"] {
		t.Summary = strings.TrimSpace(t.Summary)
	}
	if patched["description"] {
		t.Description = strings.TrimSpace(t.Description)
	}
	if patched["ratingsAverage"] {
		t.RatingsAverage = RoundRating(t.RatingsAverage)
	}
	if patched["startLocation"] || patched["locations"] {
		t.normalizeGeo()
	}
	t.Reviews = nil
	return extra
}

// Validate проверяет ограничения схемы тура.
func (t *Tour) Validate() error {
	if err := validate.Struct(t); err != nil {
		return err
	}
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return apperr.Validation("Discount price should be below regular price")
	}
	return nil
}

func (t *Tour) normalizeGeo() {
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
}

// RoundRating округляет рейтинг до одного знака после запятой.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
