// Package models содержит доменные документы сервиса бронирования туров:
// пользователей, туры и отзывы, а также вспомогательные типы (ссылки, точки на карте).
// Имена полей в json- и bson-тегах совпадают, чтобы ключи частичного обновления
// из запроса напрямую соответствовали полям документа.
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Роли пользователей.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// User представляет зарегистрированного пользователя.
//
// Пароль хранится только в виде bcrypt-хэша и никогда не попадает в JSON,
// как и поля сброса пароля и флаг активности.
type User struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id"`
	Name                 string             `json:"name" bson:"name" validate:"required"`
	Email                string             `json:"email" bson:"email" validate:"required,email"`
	Photo                string             `json:"photo,omitempty" bson:"photo,omitempty"`
	Role                 string             `json:"role" bson:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string             `json:"-" bson:"password"`
	PasswordChangedAt    *time.Time         `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string             `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time         `json:"-" bson:"passwordResetExpires,omitempty"`
	Active               bool               `json:"-" bson:"active"`
	Version              int                `json:"-" bson:"__v"`
}

// SetID задаёт идентификатор нового документа.
func (u *User) SetID(id primitive.ObjectID) {
	u.ID = id
}

// BeforeInsert нормализует email и проставляет значения по умолчанию.
func (u *User) BeforeInsert(_ time.Time) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Active = true
}

// BeforeUpdate нормализует email, если он менялся.
func (u *User) BeforeUpdate(patched map[string]bool) []string {
	if patched["email"] {
		u.Email = NormalizeEmail(u.Email)
	}
	if patched["name"] {
		u.Name = strings.TrimSpace(u.Name)
	}
	return nil
}

// Validate проверяет ограничения схемы пользователя.
func (u *User) Validate() error {
	return validate.Struct(u)
}

// ChangedPasswordAfter сообщает, менялся ли пароль после выпуска токена.
// Сравнение идёт с точностью до секунды, как и iat в JWT.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// NormalizeEmail приводит email к нижнему регистру без пробелов по краям.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Roles перечисляет допустимые роли.
func Roles() []string {
	return []string{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}
}

// PasswordResetMessage — сообщение в очередь уведомлений о сбросе пароля.
type PasswordResetMessage struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
