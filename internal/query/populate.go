package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Populate описывает подстановку документов другой коллекции на место ссылок.
type Populate struct {
	// Path — поле родительского документа, куда кладётся результат.
	Path string
	// From — коллекция, из которой берутся документы.
	From string
	// LocalField по умолчанию совпадает с Path.
	LocalField string
	// ForeignField по умолчанию _id.
	ForeignField string
	// Single — ссылка на один документ, а не массив.
	Single bool
	// Match ограничивает подставляемые документы (scope их коллекции).
	Match bson.M
	// Project — проекция подставляемых документов.
	Project bson.M
	// Nested — подстановки внутри подставляемых документов.
	Nested []Populate
}

// Stages возвращает стадии агрегации для подстановки.
func (p Populate) Stages() []bson.D {
	local := p.LocalField
	if local == "" {
		local = p.Path
	}
	foreign := p.ForeignField
	if foreign == "" {
		foreign = "_id"
	}

	sub := bson.A{}
	if len(p.Match) > 0 {
		sub = append(sub, bson.D{{Key: "$match", Value: p.Match}})
	}
	for _, n := range p.Nested {
		for _, st := range n.Stages() {
			sub = append(sub, st)
		}
	}
	if len(p.Project) > 0 {
		sub = append(sub, bson.D{{Key: "$project", Value: p.Project}})
	}

	as := p.Path
	if p.Single {
		as = "__populate_" + p.Path
	}
	lookup := bson.D{
		{Key: "from", Value: p.From},
		{Key: "localField", Value: local},
		{Key: "foreignField", Value: foreign},
		{Key: "pipeline", Value: sub},
		{Key: "as", Value: as},
	}
	stages := []bson.D{{{Key: "$lookup", Value: lookup}}}
	if !p.Single {
		return stages
	}

	return append(stages,
		bson.D{{Key: "$set", Value: bson.D{{Key: p.Path, Value: bson.D{{Key: "$ifNull", Value: bson.A{
			bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + as, 0}}},
			"$" + p.Path,
		}}}}}}},
		bson.D{{Key: "$unset", Value: as}},
	)
}
