// Package apperr описывает ошибки предметной области, которые можно безопасно
// показать клиенту. Каждая ошибка несёт вид (Kind), по которому единый обработчик
// ошибок выбирает HTTP-статус ответа.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind определяет категорию ошибки.
type Kind int

const (
	// KindInternal - непредвиденная ошибка, детали клиенту не показываются.
	KindInternal Kind = iota
	// KindValidation - нарушено ограничение схемы документа.
	KindValidation
	// KindBadRequest - некорректный запрос (параметры, тело, идентификатор).
	KindBadRequest
	// KindUnauthorized - нет учётных данных или они недействительны.
	KindUnauthorized
	// KindForbidden - у пользователя нет нужной роли.
	KindForbidden
	// KindNotFound - запись не найдена.
	KindNotFound
	// KindConflict - нарушена уникальность.
	KindConflict
	// KindDependency - отказ внешней зависимости (например, отправки письма).
	KindDependency
	// KindTooManyRequests - превышен лимит запросов.
	KindTooManyRequests
	// KindUnsupported - операция не поддерживается этим маршрутом.
	KindUnsupported
)

// Error - ошибка предметной области с сообщением для клиента.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status возвращает HTTP-статус, соответствующий виду ошибки.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Operational сообщает, можно ли показать сообщение ошибки клиенту как есть.
func (e *Error) Operational() bool {
	return e.Kind != KindInternal
}

// New создаёт ошибку заданного вида.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap создаёт ошибку заданного вида поверх исходной причины.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation - ошибка валидации документа.
func Validation(msg string) *Error { return New(KindValidation, msg) }

// BadRequest - некорректный запрос.
func BadRequest(msg string) *Error { return New(KindBadRequest, msg) }

// Unauthorized - отказ в аутентификации.
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

// Forbidden - недостаточно прав.
func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

// NotFound - запись не найдена.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Conflict - нарушение уникальности.
func Conflict(msg string, err error) *Error { return Wrap(KindConflict, msg, err) }

// Dependency - сбой внешнего сервиса.
func Dependency(msg string, err error) *Error { return Wrap(KindDependency, msg, err) }

// TooManyRequests - превышен лимит запросов.
func TooManyRequests(msg string) *Error { return New(KindTooManyRequests, msg) }

// Unsupported - ответ 500 с сообщением для клиента.
func Unsupported(msg string) *Error { return New(KindUnsupported, msg) }

// KindOf возвращает вид ошибки или KindInternal, если это не *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is проверяет, что ошибка относится к заданному виду.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
