package postgres

import (
	"reflect"
	"sync"
)

// rowField maps one "db"-tagged field to its column.
type rowField struct {
	index  []int
	column string
}

var rowFieldCache sync.Map // map[reflect.Type][]rowField

func rowFields(t reflect.Type) []rowField {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := rowFieldCache.Load(t); ok {
		return cached.([]rowField)
	}
	var fields []rowField
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			tag := f.Tag.Get("db")
			if f.Anonymous || tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, rowField{index: f.Index, column: tag})
		}
	}
	rowFieldCache.Store(t, fields)
	return fields
}

// Columns lists the "db" tags of row type T in field order. Promoted
// fields of embedded structs are included.
//
//	var invoiceColumns = postgres.Columns[invoiceRow]()
func Columns[T any]() []string {
	fields := rowFields(reflect.TypeFor[T]())
	cols := make([]string, len(fields))
	for k, f := range fields {
		cols[k] = f.column
	}
	return cols
}

// RowMap converts a row struct into column/value pairs for squirrel's
// SetMap. Non-struct values yield nil.
func RowMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := rowFields(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}

// RowValues returns v's field values in Columns order, ready for COPY.
func RowValues(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fields := rowFields(rv.Type())
	vals := make([]any, len(fields))
	for k, f := range fields {
		vals[k] = rv.FieldByIndex(f.index).Interface()
	}
	return vals
}
