// Package storage содержит общие ошибки хранилища. Реализация на MongoDB
// находится в подпакете mongo.
package storage

import (
	"errors"
	"regexp"
)

var (
	// ErrNotFound - документ не найден (или скрыт scope коллекции).
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey - нарушен уникальный индекс.
	ErrDuplicateKey = errors.New("duplicate key")
)

var dupKeyValue = regexp.MustCompile(`dup key: \{\s*(.*?)\s*\}`)

// DuplicateValue извлекает значение, нарушившее уникальный индекс,
// из текста ошибки сервера. Пустая строка, если значение не найдено.
func DuplicateValue(err error) string {
	if err == nil {
		return ""
	}
	m := dupKeyValue.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}
