package util

import (
	"errors"
	"reflect"
	"strings"
)

// StructToMap converts a struct to column values using db tags.
//
// Rules:
//   - Unexported fields are skipped.
//   - db:"-" fields are skipped.
//   - db:"name" maps to name, db:"name,omitempty" skips zero values.
//   - Fields without db tag use the snake_case field name.
func StructToMap(data interface{}) (map[string]interface{}, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.New("StructToMap: nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, errors.New("StructToMap: expected struct, got " + v.Kind().String())
	}

	t := v.Type()
	result := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty := parseTag(field)
		if name == "-" {
			continue
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		result[name] = fv.Interface()
	}
	return result, nil
}

func parseTag(field reflect.StructField) (name string, omitEmpty bool) {
	tag, ok := field.Tag.Lookup("db")
	if !ok || tag == "" {
		return TableName(field.Name), false
	}
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "omitempty" {
			omitEmpty = true
		}
	}
	if name == "" {
		name = TableName(field.Name)
	}
	return name, omitEmpty
}
