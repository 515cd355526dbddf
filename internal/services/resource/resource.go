// Package resource реализует обобщённые операции над документами:
// список с построителем запросов, чтение, создание, частичное обновление
// и удаление. Правила конкретной сущности задаются самой моделью через
// Validate и необязательные хуки BeforeInsert/BeforeUpdate.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
	"github.com/magabrotheeeer/tour-booking/internal/storage"
)

// Model — ограничение на указатель модели.
type Model[T any] interface {
	*T
	SetID(id primitive.ObjectID)
	Validate() error
}

// BeforeInserter вызывается перед сохранением нового документа.
type BeforeInserter interface {
	BeforeInsert(now time.Time)
}

// BeforeUpdater вызывается после наложения патча. Возвращает ключи
// производных полей, которые тоже нужно сохранить.
type BeforeUpdater interface {
	BeforeUpdate(patched map[string]bool) []string
}

// Repository описывает хранилище, с которым работает сервис.
type Repository[T any] interface {
	Find(ctx context.Context, q query.Query) ([]T, error)
	FindByID(ctx context.Context, id primitive.ObjectID, extra ...query.Populate) (*T, error)
	Get(ctx context.Context, id primitive.ObjectID) (*T, error)
	Insert(ctx context.Context, doc *T) error
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) (*T, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (*T, error)
}

// Service — обобщённый сервис ресурса.
type Service[T any, PT Model[T]] struct {
	repo     Repository[T]
	name     string
	maxLimit int
	now      func() time.Time
	fields   map[string]string
	kinds    map[string]reflect.Kind
}

type options struct {
	maxLimit int
	now      func() time.Time
}

// Option настраивает Service.
type Option func(*options)

// WithMaxLimit ограничивает размер страницы списка.
func WithMaxLimit(n int) Option {
	return func(o *options) { o.maxLimit = n }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New создаёт сервис ресурса. name используется в сообщениях об ошибках.
func New[T any, PT Model[T]](repo Repository[T], name string, opts ...Option) *Service[T, PT] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service[T, PT]{
		repo:     repo,
		name:     name,
		maxLimit: o.maxLimit,
		now:      o.now,
		fields:   patchableFields[T](),
		kinds:    fieldKinds[T](),
	}
}

// Name возвращает имя ресурса.
func (s *Service[T, PT]) Name() string {
	return s.name
}

// Repo возвращает репозиторий сервиса.
func (s *Service[T, PT]) Repo() Repository[T] {
	return s.repo
}

// List возвращает документы по параметрам строки запроса. parent
// сужает выборку для вложенных маршрутов.
func (s *Service[T, PT]) List(ctx context.Context, params url.Values, parent bson.M) ([]T, error) {
	const op = "resource.List"
	q, err := query.Build(params,
		query.WithMaxLimit(s.maxLimit),
		query.WithBase(parent),
		query.WithKinds(s.kinds),
	)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}

// Get возвращает документ по идентификатору.
func (s *Service[T, PT]) Get(ctx context.Context, id string, populate ...query.Populate) (*T, error) {
	const op = "resource.Get"
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, oid, populate...)
	if err != nil {
		return nil, s.mapErr(op, err)
	}
	return doc, nil
}

// Create проверяет и сохраняет новый документ.
func (s *Service[T, PT]) Create(ctx context.Context, doc *T) (*T, error) {
	const op = "resource.Create"
	p := PT(doc)
	p.SetID(primitive.NewObjectID())
	if h, ok := any(doc).(BeforeInserter); ok {
		h.BeforeInsert(s.now())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		return nil, s.mapErr(op, err)
	}
	return doc, nil
}

// Update применяет JSON-патч и возвращает обновлённый документ.
func (s *Service[T, PT]) Update(ctx context.Context, id string, patch json.RawMessage) (*T, error) {
	_, after, err := s.UpdateCaptured(ctx, id, patch)
	return after, err
}

// UpdateCaptured применяет JSON-патч и возвращает документ до и после изменения.
//
// Патч накладывается на копию текущего документа, копия проходит хуки
// и валидацию, после чего сохраняются только ключи из патча и ключи,
// которые вернул BeforeUpdate.
func (s *Service[T, PT]) UpdateCaptured(ctx context.Context, id string, patch json.RawMessage) (*T, *T, error) {
	const op = "resource.Update"
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, nil, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(patch, &keys); err != nil || keys == nil {
		return nil, nil, apperr.Wrap(apperr.KindBadRequest, "Invalid request body", err)
	}

	current, err := s.repo.Get(ctx, oid)
	if err != nil {
		return nil, nil, s.mapErr(op, err)
	}
	next, err := clone(current)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(patch, next); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindBadRequest, "Invalid request body: "+err.Error(), err)
	}

	patched := make(map[string]bool, len(keys))
	for k := range keys {
		if _, ok := s.fields[k]; ok {
			patched[k] = true
		}
	}
	var extra []string
	if h, ok := any(next).(BeforeUpdater); ok {
		extra = h.BeforeUpdate(patched)
	}
	if err := PT(next).Validate(); err != nil {
		return nil, nil, err
	}

	set, unset, err := s.changes(next, patched, extra)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.UpdateByID(ctx, oid, set, unset); err != nil {
		return nil, nil, s.mapErr(op, err)
	}
	after, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		return nil, nil, s.mapErr(op, err)
	}
	return current, after, nil
}

// Delete удаляет документ и возвращает его последнее состояние.
func (s *Service[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	const op = "resource.Delete"
	oid, err := models.ParseID(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.DeleteByID(ctx, oid)
	if err != nil {
		return nil, s.mapErr(op, err)
	}
	return doc, nil
}

// changes собирает $set для изменённых ключей и $unset для ключей,
// которые после патча отсутствуют в документе.
func (s *Service[T, PT]) changes(doc *T, patched map[string]bool, extra []string) (bson.M, []string, error) {
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	raw := bson.Raw(b)
	set := bson.M{}
	var unset []string
	apply := func(key string) {
		if _, err := raw.LookupErr(key); err != nil {
			unset = append(unset, key)
			return
		}
		set[key] = raw.Lookup(key)
	}
	for jsonKey := range patched {
		apply(s.fields[jsonKey])
	}
	for _, key := range extra {
		apply(key)
	}
	return set, unset, nil
}

func (s *Service[T, PT]) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("No %s found with that ID", s.name), err)
	case errors.Is(err, storage.ErrDuplicateKey):
		return DuplicateError(err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// DuplicateError превращает нарушение уникальности в ошибку для клиента.
func DuplicateError(err error) error {
	value := storage.DuplicateValue(err)
	if value == "" {
		return apperr.Conflict("Duplicate field value. Please use another value!", err)
	}
	return apperr.Conflict(fmt.Sprintf("Duplicate field value: %s. Please use another value!", value), err)
}

func clone[T any](doc *T) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
