package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/magabrotheeeer/tour-booking/internal/query"
	"github.com/magabrotheeeer/tour-booking/internal/storage"
)

// Repository - репозиторий документов типа T одной коллекции.
type Repository[T any] struct {
	coll      *mongo.Collection
	scope     bson.M
	populates []query.Populate
	timeout   time.Duration
}

type repoConfig struct {
	scope     bson.M
	populates []query.Populate
	timeout   time.Duration
}

// RepoOption настраивает репозиторий.
type RepoOption func(*repoConfig)

// WithScope задаёт фильтр, применяемый ко всем чтениям.
func WithScope(scope bson.M) RepoOption {
	return func(c *repoConfig) { c.scope = scope }
}

// WithPopulate задаёт подстановки ссылок, выполняемые при каждом чтении.
func WithPopulate(p ...query.Populate) RepoOption {
	return func(c *repoConfig) { c.populates = append(c.populates, p...) }
}

// WithTimeout ограничивает время одной операции.
func WithTimeout(d time.Duration) RepoOption {
	return func(c *repoConfig) { c.timeout = d }
}

// NewRepository создаёт репозиторий коллекции coll.
func NewRepository[T any](coll *mongo.Collection, opts ...RepoOption) *Repository[T] {
	cfg := repoConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[T]{
		coll:      coll,
		scope:     cfg.scope,
		populates: cfg.populates,
		timeout:   cfg.timeout,
	}
}

// Scope возвращает фильтр чтения коллекции.
func (r *Repository[T]) Scope() bson.M {
	return r.scope
}

// Collection возвращает коллекцию репозитория.
func (r *Repository[T]) Collection() *mongo.Collection {
	return r.coll
}

func (r *Repository[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository[T]) scoped(filter bson.M) bson.M {
	return query.And(r.scope, filter)
}

// Find возвращает документы по построенному запросу.
func (r *Repository[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	const op = "storage.mongo.Find"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		cur *mongo.Cursor
		err error
	)
	if len(r.populates) == 0 {
		cur, err = r.coll.Find(ctx, r.scoped(q.Filter), q.FindOptions())
	} else {
		cur, err = r.coll.Aggregate(ctx, q.Pipeline(r.scope, r.populates...))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	docs := make([]T, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}

// FindByID возвращает документ с подстановкой ссылок.
// extra добавляет подстановки только для этого запроса.
func (r *Repository[T]) FindByID(ctx context.Context, id primitive.ObjectID, extra ...query.Populate) (*T, error) {
	const op = "storage.mongo.FindByID"
	populates := append(append([]query.Populate{}, r.populates...), extra...)
	if len(populates) == 0 {
		return r.Get(ctx, id)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := query.Query{Filter: bson.M{"_id": id}, Limit: 1}
	cur, err := r.coll.Aggregate(ctx, q.Pipeline(r.scope, populates...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	var doc T
	if err := cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &doc, nil
}

// Get возвращает документ без подстановки ссылок.
func (r *Repository[T]) Get(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

// FindOne возвращает первый документ, подходящий под фильтр, без подстановок.
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	const op = "storage.mongo.FindOne"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc T
	if err := r.coll.FindOne(ctx, r.scoped(filter)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &doc, nil
}

// Count возвращает число документов под фильтром.
func (r *Repository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	const op = "storage.mongo.Count"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, r.scoped(filter))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Insert сохраняет новый документ.
func (r *Repository[T]) Insert(ctx context.Context, doc *T) error {
	const op = "storage.mongo.Insert"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// UpdateByID применяет $set/$unset к документу в scope и возвращает
// документ после изменения.
func (r *Repository[T]) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) (*T, error) {
	const op = "storage.mongo.UpdateByID"
	update := updateDoc(set, unset)
	if len(update) == 0 {
		return r.Get(ctx, id)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc T
	err := r.coll.FindOneAndUpdate(ctx, r.scoped(bson.M{"_id": id}), update, opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &doc, nil
}

// UpdateFields меняет поля документа без scope и без валидации модели.
func (r *Repository[T]) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M, unset []string) error {
	const op = "storage.mongo.UpdateFields"
	update := updateDoc(set, unset)
	if len(update) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// DeleteByID удаляет документ в scope и возвращает удалённый документ.
func (r *Repository[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	const op = "storage.mongo.DeleteByID"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var doc T
	if err := r.coll.FindOneAndDelete(ctx, r.scoped(bson.M{"_id": id})).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &doc, nil
}

// DeleteMany удаляет все документы под фильтром без учёта scope.
func (r *Repository[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	const op = "storage.mongo.DeleteMany"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.DeletedCount, nil
}

// Distinct возвращает различные значения поля под фильтром без учёта scope.
func (r *Repository[T]) Distinct(ctx context.Context, field string, filter bson.M) ([]any, error) {
	const op = "storage.mongo.Distinct"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	vals, err := r.coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return vals, nil
}

// Aggregate выполняет конвейер как есть и декодирует результат в out.
func (r *Repository[T]) Aggregate(ctx context.Context, pipeline any, out any) error {
	const op = "storage.mongo.Aggregate"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func updateDoc(set bson.M, unset []string) bson.M {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		u := bson.M{}
		for _, k := range unset {
			u[k] = ""
		}
		update["$unset"] = u
	}
	return update
}

func mapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
	default:
		return err
	}
}
