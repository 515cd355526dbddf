// Package factory строит обобщённые HTTP-обработчики CRUD для любого ресурса:
// список, чтение, создание, частичное обновление и удаление.
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/magabrotheeeer/tour-booking/internal/http/response"
	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
	"github.com/magabrotheeeer/tour-booking/internal/models"
	"github.com/magabrotheeeer/tour-booking/internal/query"
)

// DefaultBodyLimit — максимальный размер тела запроса по умолчанию.
const DefaultBodyLimit = 10 << 10

// Service — операции ресурса, которые обслуживает фабрика.
type Service[T any] interface {
	List(ctx context.Context, params url.Values, parent bson.M) ([]T, error)
	Get(ctx context.Context, id string, populate ...query.Populate) (*T, error)
	Create(ctx context.Context, doc *T) (*T, error)
	Update(ctx context.Context, id string, patch json.RawMessage) (*T, error)
	Delete(ctx context.Context, id string) (*T, error)
}

// Handler — набор обработчиков одного ресурса.
type Handler[T any] struct {
	log       *slog.Logger
	svc       Service[T]
	singular  string
	plural    string
	parent    *parent
	prepare   func(r *http.Request, doc *T) error
	idFrom    func(r *http.Request) string
	bodyLimit int64
}

type parent struct {
	param string
	field string
}

// Option настраивает Handler.
type Option[T any] func(*Handler[T])

// WithParent сужает список по родителю из пути: {field: <param>}.
func WithParent[T any](param, field string) Option[T] {
	return func(h *Handler[T]) { h.parent = &parent{param: param, field: field} }
}

// WithPrepare дополняет документ перед созданием.
func WithPrepare[T any](fn func(r *http.Request, doc *T) error) Option[T] {
	return func(h *Handler[T]) { h.prepare = fn }
}

// WithIDFrom задаёт, откуда брать идентификатор документа. По умолчанию {id}.
func WithIDFrom[T any](fn func(r *http.Request) string) Option[T] {
	return func(h *Handler[T]) { h.idFrom = fn }
}

// WithBodyLimit ограничивает размер тела запроса.
func WithBodyLimit[T any](n int64) Option[T] {
	return func(h *Handler[T]) {
		if n > 0 {
			h.bodyLimit = n
		}
	}
}

// New создаёт обработчики ресурса. singular и plural — ключи в data ответа.
func New[T any](log *slog.Logger, svc Service[T], singular, plural string, opts ...Option[T]) *Handler[T] {
	h := &Handler[T]{
		log:       log,
		svc:       svc,
		singular:  singular,
		plural:    plural,
		idFrom:    func(r *http.Request) string { return chi.URLParam(r, "id") },
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler[T]) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// GetAll отдаёт список документов по параметрам строки запроса.
func (h *Handler[T]) GetAll(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.factory.GetAll"
	log := h.logger(r, op)

	filter, err := h.parentFilter(r)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	docs, err := h.svc.List(r.Context(), r.URL.Query(), filter)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Debug("documents listed", slog.Int("count", len(docs)))
	response.List(w, r, h.plural, docs, len(docs))
}

// GetOne отдаёт документ по идентификатору.
func (h *Handler[T]) GetOne(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.factory.GetOne"
	log := h.logger(r, op)

	doc, err := h.svc.Get(r.Context(), h.idFrom(r))
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	response.OK(w, r, h.singular, doc)
}

// CreateOne создаёт документ из тела запроса.
func (h *Handler[T]) CreateOne(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.factory.CreateOne"
	log := h.logger(r, op)

	doc := new(T)
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, h.bodyLimit), doc); err != nil {
		response.Fail(w, r, log, decodeError(err))
		return
	}
	if h.prepare != nil {
		if err := h.prepare(r, doc); err != nil {
			response.Fail(w, r, log, err)
			return
		}
	}

	created, err := h.svc.Create(r.Context(), doc)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("document created")
	response.Created(w, r, h.singular, created)
}

// UpdateOne применяет тело запроса как частичное обновление.
func (h *Handler[T]) UpdateOne(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.factory.UpdateOne"
	log := h.logger(r, op)

	patch, err := ReadBody(w, r, h.bodyLimit)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	doc, err := h.svc.Update(r.Context(), h.idFrom(r), patch)
	if err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("document updated")
	response.OK(w, r, h.singular, doc)
}

// DeleteOne удаляет документ.
func (h *Handler[T]) DeleteOne(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.factory.DeleteOne"
	log := h.logger(r, op)

	if _, err := h.svc.Delete(r.Context(), h.idFrom(r)); err != nil {
		response.Fail(w, r, log, err)
		return
	}
	log.Info("document deleted")
	response.NoContent(w)
}

func (h *Handler[T]) parentFilter(r *http.Request) (bson.M, error) {
	if h.parent == nil {
		return nil, nil
	}
	raw := chi.URLParam(r, h.parent.param)
	if raw == "" {
		return nil, nil
	}
	id, err := models.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return bson.M{h.parent.field: id}, nil
}

// ReadBody читает тело запроса целиком, не больше limit байт.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, decodeError(err)
	}
	if len(body) == 0 {
		return nil, apperr.BadRequest("Invalid request body")
	}
	return body, nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Wrap(apperr.KindBadRequest, "Request body is too large", err)
	}
	return apperr.Wrap(apperr.KindBadRequest, "Invalid request body: "+err.Error(), err)
}
