package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
)

// TourScope скрывает секретные туры.
func TourScope() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

// UserScope скрывает деактивированных пользователей.
func UserScope() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

// GuidesPopulate подставляет гидов тура без служебных и секретных полей.
func GuidesPopulate() query.Populate {
	return query.Populate{
		Path:  "guides",
		From:  CollectionUsers,
		Match: UserScope(),
		Project: bson.M{
			"__v":                  0,
			"passwordChangedAt":    0,
			"password":             0,
			"passwordResetToken":   0,
			"passwordResetExpires": 0,
			"active":               0,
		},
	}
}

// ReviewUserPopulate подставляет автора отзыва: только имя и фото.
func ReviewUserPopulate() query.Populate {
	return query.Populate{
		Path:    "user",
		From:    CollectionUsers,
		Single:  true,
		Match:   UserScope(),
		Project: bson.M{"name": 1, "photo": 1},
	}
}

// TourReviewsPopulate подставляет отзывы тура вместе с авторами.
func TourReviewsPopulate() query.Populate {
	return query.Populate{
		Path:         "reviews",
		From:         CollectionReviews,
		LocalField:   "_id",
		ForeignField: "tour",
		Project:      bson.M{"__v": 0},
		Nested:       []query.Populate{ReviewUserPopulate()},
	}
}

// Tours возвращает репозиторий туров.
func (s *Storage) Tours(timeout time.Duration) *Repository[models.Tour] {
	return NewRepository[models.Tour](s.Collection(CollectionTours),
		WithScope(TourScope()),
		WithPopulate(GuidesPopulate()),
		WithTimeout(timeout),
	)
}

// Users возвращает репозиторий пользователей.
func (s *Storage) Users(timeout time.Duration) *Repository[models.User] {
	return NewRepository[models.User](s.Collection(CollectionUsers),
		WithScope(UserScope()),
		WithTimeout(timeout),
	)
}

// Reviews возвращает репозиторий отзывов.
func (s *Storage) Reviews(timeout time.Duration) *Repository[models.Review] {
	return NewRepository[models.Review](s.Collection(CollectionReviews),
		WithPopulate(ReviewUserPopulate()),
		WithTimeout(timeout),
	)
}
