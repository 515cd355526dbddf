package models

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
)

// validate общий валидатор моделей; в сообщениях используются имена полей из json-тегов.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validator возвращает общий валидатор, чтобы обработчики проверяли запросы
// теми же правилами, что и модели.
func Validator() *validator.Validate {
	return validate
}

// ParseID разбирает hex-представление ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.Wrap(apperr.KindBadRequest, "Invalid id: "+id, err)
	}
	return oid, nil
}
