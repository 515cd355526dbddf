// Package reviews дополняет фабричные обработчики отзывов.
package reviews

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/tour-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/tour-booking/internal/models"
)

// TourParam — параметр пути вложенного маршрута /tours/{tourId}/reviews.
const TourParam = "tourId"

// SetTourUserIDs подставляет тур из пути и автора из сессии, если их нет в теле.
func SetTourUserIDs(r *http.Request, doc *models.Review) error {
	if doc.Tour.IsZero() {
		if raw := chi.URLParam(r, TourParam); raw != "" {
			id, err := models.ParseID(raw)
			if err != nil {
				return err
			}
			doc.Tour = id
		}
	}
	if doc.User.IsZero() {
		if user, ok := middlewarectx.UserFromContext(r.Context()); ok {
			doc.User = models.NewRef[models.User](user.ID)
		}
	}
	return nil
}
