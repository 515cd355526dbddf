package resource

import (
	"reflect"
	"strings"
)

// patchableFields сопоставляет имена полей в JSON с ключами документа.
// Поля, скрытые из JSON, и идентификатор изменить патчем нельзя.
func patchableFields[T any]() map[string]string {
	out := map[string]string{}
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		jsonName := tagName(f.Tag.Get("json"))
		if jsonName == "-" || jsonName == "" || jsonName == "id" {
			continue
		}
		bsonName := tagName(f.Tag.Get("bson"))
		if bsonName == "-" || bsonName == "" || bsonName == "_id" {
			continue
		}
		out[jsonName] = bsonName
	}
	return out
}

func tagName(tag string) string {
	return strings.SplitN(tag, ",", 2)[0]
}

// fieldKinds возвращает вид значения каждого поля модели под именами из
// JSON и из документа. Для указателей и срезов берётся вид элемента.
func fieldKinds[T any]() map[string]reflect.Kind {
	out := map[string]reflect.Kind{}
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer || ft.Kind() == reflect.Slice {
			ft = ft.Elem()
		}
		for _, name := range []string{tagName(f.Tag.Get("json")), tagName(f.Tag.Get("bson"))} {
			if name != "" && name != "-" {
				out[name] = ft.Kind()
			}
		}
	}
	return out
}
