package models

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ref — ссылка на документ другой коллекции.
//
// В хранилище ссылка всегда сохраняется как ObjectID. При чтении с подстановкой
// ($lookup) на месте идентификатора оказывается сам документ — тогда он попадает
// в Doc, а в JSON ссылка выводится целым документом.
type Ref[T any] struct {
	ID  primitive.ObjectID
	Doc *T `validate:"-"`
}

// NewRef создаёт ссылку по идентификатору.
func NewRef[T any](id primitive.ObjectID) Ref[T] {
	return Ref[T]{ID: id}
}

// IsZero сообщает, что ссылка не задана.
func (r Ref[T]) IsZero() bool {
	return r.ID.IsZero()
}

// Populated сообщает, что вместо идентификатора подставлен документ.
func (r Ref[T]) Populated() bool {
	return r.Doc != nil
}

// MarshalBSONValue сохраняет только идентификатор.
func (r Ref[T]) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(r.ID)
}

// UnmarshalBSONValue принимает как ObjectID, так и подставленный документ.
func (r *Ref[T]) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeObjectID:
		r.ID = raw.ObjectID()
		r.Doc = nil
		return nil
	case bson.TypeEmbeddedDocument:
		doc := raw.Document()
		id, ok := doc.Lookup("_id").ObjectIDOK()
		if !ok {
			return fmt.Errorf("models.Ref: populated document has no _id")
		}
		var v T
		if err := bson.Unmarshal(doc, &v); err != nil {
			return fmt.Errorf("models.Ref: %w", err)
		}
		r.ID = id
		r.Doc = &v
		return nil
	case bson.TypeNull, bson.TypeUndefined:
		*r = Ref[T]{}
		return nil
	default:
		return fmt.Errorf("models.Ref: unexpected bson type %s", t)
	}
}

// MarshalJSON выводит документ, если он подставлен, иначе hex идентификатора.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Doc != nil {
		return json.Marshal(r.Doc)
	}
	if r.ID.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID.Hex())
}

// UnmarshalJSON принимает hex идентификатора или документ с полем id.
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ref[T]{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var head struct {
			ID primitive.ObjectID `json:"id"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return fmt.Errorf("invalid reference document: %w", err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid reference document: %w", err)
		}
		r.ID = head.ID
		r.Doc = &v
		return nil
	}
	var hex string
	if err := json.Unmarshal(data, &hex); err != nil {
		return fmt.Errorf("reference must be an id string: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return fmt.Errorf("invalid reference id %q: %w", hex, err)
	}
	r.ID = id
	r.Doc = nil
	return nil
}
