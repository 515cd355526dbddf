package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindOptions переводит сортировку, проекцию и пагинацию в опции Find.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find().SetSort(q.Sort).SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	return opts
}

// Pipeline строит конвейер агрегации: отбор с учётом scope, сортировка,
// пагинация, подстановка ссылок и проекция.
func (q Query) Pipeline(scope bson.M, populates ...Populate) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: And(scope, q.Filter)}},
	}
	if len(q.Sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: q.Sort}})
	}
	if q.Skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: q.Skip}})
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	for _, p := range populates {
		pipeline = append(pipeline, p.Stages()...)
	}
	if len(q.Projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: q.Projection}})
	}
	return pipeline
}

// And объединяет непустые фильтры через $and.
func And(filters ...bson.M) bson.M {
	parts := make(bson.A, 0, len(filters))
	var last bson.M
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		parts = append(parts, f)
		last = f
	}
	switch len(parts) {
	case 0:
		return bson.M{}
	case 1:
		return last
	default:
		return bson.M{"$and": parts}
	}
}
