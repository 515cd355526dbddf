// Package query строит запросы к MongoDB из параметров строки запроса.
//
// Построитель применяет четыре стадии в фиксированном порядке: фильтр,
// сортировка, выбор полей и пагинация. Обращения к базе нет: результат —
// значение Query, которое репозиторий превращает в options.FindOptions
// или в конвейер агрегации.
package query

import (
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/magabrotheeeer/tour-booking/internal/lib/apperr"
)

// Значения пагинации по умолчанию.
const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Зарезервированные параметры, которые не попадают в фильтр.
var reserved = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

var operatorKey = regexp.MustCompile(`^([^\[\]]+)\[(gte|gt|lte|lt)\]$`)

// Query — материализованный запрос.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Page       int64
	Skip       int64
	Limit      int64
}

// Builder накапливает стадии запроса.
type Builder struct {
	params   url.Values
	base     bson.M
	kinds    map[string]reflect.Kind
	maxLimit int64
	q        Query
	err      error
}

// Option настраивает Builder.
type Option func(*Builder)

// WithMaxLimit ограничивает размер страницы. 0 — без ограничения.
func WithMaxLimit(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxLimit = int64(n)
		}
	}
}

// WithBase задаёт фильтр родительского ресурса. Его ключи
// перекрывают одноимённые параметры запроса.
func WithBase(filter bson.M) Option {
	return func(b *Builder) {
		b.base = filter
	}
}

// WithKinds задаёт типы полей документа. Значение параметра приводится
// к типу своего поля; для неизвестных полей работает Coerce.
func WithKinds(kinds map[string]reflect.Kind) Option {
	return func(b *Builder) {
		b.kinds = kinds
	}
}

// New создаёт построитель с умолчаниями всех стадий.
func New(params url.Values, opts ...Option) *Builder {
	b := &Builder{
		params: params,
		q: Query{
			Filter:     bson.M{},
			Sort:       DefaultSort(),
			Projection: DefaultProjection(),
			Page:       DefaultPage,
			Skip:       0,
			Limit:      DefaultLimit,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxLimit > 0 && b.q.Limit > b.maxLimit {
		b.q.Limit = b.maxLimit
	}
	for k, v := range b.base {
		b.q.Filter[k] = v
	}
	return b
}

// DefaultSort — сортировка по умолчанию, сначала новые.
func DefaultSort() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}}
}

// DefaultProjection скрывает служебное поле версии.
func DefaultProjection() bson.M {
	return bson.M{"__v": 0}
}

// Build выполняет все четыре стадии.
func Build(params url.Values, opts ...Option) (Query, error) {
	return New(params, opts...).Filter().Sort().LimitFields().Paginate().Query()
}

// Filter превращает параметры в фильтр. field[gte]=v становится
// {field: {$gte: v}}, повторяющиеся ключи — $in.
func (b *Builder) Filter() *Builder {
	filter := bson.M{}
	ops := map[string]bson.M{}

	keys := make([]string, 0, len(b.params))
	for k := range b.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := b.params[key]
		if reserved[key] || len(values) == 0 || unsafeKey(key) {
			continue
		}
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			field := m[1]
			if unsafeKey(field) {
				continue
			}
			if ops[field] == nil {
				ops[field] = bson.M{}
			}
			ops[field]["$"+m[2]] = b.coerce(field, values[len(values)-1])
			continue
		}
		if len(values) == 1 {
			filter[key] = b.coerce(key, values[0])
			continue
		}
		in := make(bson.A, 0, len(values))
		for _, v := range values {
			in = append(in, b.coerce(key, v))
		}
		filter[key] = bson.M{"$in": in}
	}

	for field, cond := range ops {
		if eq, ok := filter[field]; ok {
			if m, isM := eq.(bson.M); isM {
				for k, v := range m {
					cond[k] = v
				}
			} else {
				cond["$eq"] = eq
			}
		}
		filter[field] = cond
	}

	for k, v := range b.base {
		filter[k] = v
	}
	b.q.Filter = filter
	return b
}

// Sort разбирает sort=a,-b. Без параметра — DefaultSort.
func (b *Builder) Sort() *Builder {
	raw := b.params.Get("sort")
	sortDoc := bson.D{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = part[1:]
		}
		if part == "" || unsafeKey(part) {
			continue
		}
		sortDoc = append(sortDoc, bson.E{Key: part, Value: dir})
	}
	if len(sortDoc) == 0 {
		sortDoc = DefaultSort()
	}
	b.q.Sort = sortDoc
	return b
}

// LimitFields разбирает fields=a,b или fields=-a. Без параметра — DefaultProjection.
func (b *Builder) LimitFields() *Builder {
	raw := b.params.Get("fields")
	proj := bson.M{}
	include, exclude := false, false
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		val := 1
		if strings.HasPrefix(part, "-") {
			val = 0
			part = part[1:]
		}
		if part == "" || unsafeKey(part) {
			continue
		}
		if part != "_id" {
			if val == 1 {
				include = true
			} else {
				exclude = true
			}
		}
		proj[part] = val
	}
	if include && exclude {
		b.setErr(apperr.BadRequest("Cannot mix included and excluded fields"))
		return b
	}
	if len(proj) == 0 {
		proj = DefaultProjection()
	}
	b.q.Projection = proj
	return b
}

// Paginate разбирает page и limit. Непозитивные и нечисловые значения
// заменяются умолчаниями. Страница, смещение которой не помещается
// в int64, отклоняется.
func (b *Builder) Paginate() *Builder {
	page := positiveInt(b.params.Get("page"), DefaultPage)
	limit := positiveInt(b.params.Get("limit"), DefaultLimit)
	if b.maxLimit > 0 && limit > b.maxLimit {
		limit = b.maxLimit
	}
	if page-1 > math.MaxInt64/limit {
		b.setErr(apperr.BadRequest(fmt.Sprintf("Invalid page: %d", page)))
		return b
	}
	b.q.Page = page
	b.q.Limit = limit
	b.q.Skip = (page - 1) * limit
	return b
}

// Query возвращает построенный запрос.
func (b *Builder) Query() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	return b.q, nil
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func positiveInt(raw string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// unsafeKey отбрасывает ключи с операторами MongoDB в любом сегменте пути.
func unsafeKey(key string) bool {
	for _, seg := range strings.Split(key, ".") {
		if strings.HasPrefix(seg, "$") {
			return true
		}
	}
	return false
}

func (b *Builder) coerce(field, v string) any {
	kind, ok := b.kinds[field]
	if !ok {
		return Coerce(v)
	}
	switch kind {
	case reflect.String:
		return v
	case reflect.Bool:
		if bv, err := strconv.ParseBool(v); err == nil {
			return bv
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	case reflect.Array:
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid
		}
	default:
		return Coerce(v)
	}
	b.setErr(apperr.BadRequest(fmt.Sprintf("Invalid %s: %s", field, v)))
	return v
}

// Coerce приводит строковое значение параметра к числу, bool или ObjectID.
func Coerce(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if len(v) == 24 {
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid
		}
	}
	return v
}
