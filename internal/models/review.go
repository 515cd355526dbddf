package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
)

// Review — отзыв пользователя о туре. Пара (tour, user) уникальна.
type Review struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Review    string             `json:"review" bson:"review" validate:"required"`
	Rating    float64            `json:"rating,omitempty" bson:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Tour      primitive.ObjectID `json:"tour" bson:"tour"`
	User      Ref[User]          `json:"user" bson:"user"`
	Version   int                `json:"-" bson:"__v"`
}

// SetID задаёт идентификатор нового документа.
func (r *Review) SetID(id primitive.ObjectID) {
	r.ID = id
}

// BeforeInsert проставляет дату создания.
func (r *Review) BeforeInsert(now time.Time) {
	r.Review = strings.TrimSpace(r.Review)
	r.CreatedAt = now.UTC()
}

// Validate проверяет текст, оценку и обязательные ссылки.
func (r *Review) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Tour.IsZero() {
		return apperr.Validation("Review must belong to a tour.")
	}
	if r.User.IsZero() {
		return apperr.Validation("Review must belong to a user")
	}
	return nil
}
