package postgres

import (
	"fmt"
	"reflect"
	"sync"
)

// column is one db-tagged field reachable from a row type, including fields
// promoted from embedded structs such as tenant.Scope.
type column struct {
	name  string
	index []int
}

// columnLayout is the flattened column list of a row type in declaration order.
type columnLayout struct {
	typ  reflect.Type
	cols []column
}

var layouts sync.Map // reflect.Type -> *columnLayout

// layoutOf returns the cached layout for T. It panics when T is not a struct
// or maps two fields to the same column, both of which are programming errors
// surfaced at repository construction.
func layoutOf[T any]() *columnLayout {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := layouts.Load(t); ok {
		return cached.(*columnLayout)
	}
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("postgres: row type %s is not a struct", t))
	}

	l := &columnLayout{typ: t}
	seen := make(map[string]string)
	collectColumns(t, nil, func(c column, field string) {
		if prev, dup := seen[c.name]; dup {
			panic(fmt.Sprintf("postgres: %s maps %s and %s to column %q", t, prev, field, c.name))
		}
		seen[c.name] = field
		l.cols = append(l.cols, c)
	})

	actual, _ := layouts.LoadOrStore(t, l)
	return actual.(*columnLayout)
}

func collectColumns(t reflect.Type, parent []int, emit func(column, string)) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		idx := append(append([]int(nil), parent...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("db") == "" {
			collectColumns(f.Type, idx, emit)
			continue
		}
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		emit(column{name: tag, index: idx}, t.Name()+"."+f.Name)
	}
}

// names returns the column names, optionally without the skipped ones.
func (l *columnLayout) names(skip map[string]struct{}) []string {
	out := make([]string, 0, len(l.cols))
	for _, c := range l.cols {
		if _, ok := skip[c.name]; ok {
			continue
		}
		out = append(out, c.name)
	}
	return out
}

// row returns the field values of v aligned with names(skip).
func (l *columnLayout) row(v any, skip map[string]struct{}) []any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	out := make([]any, 0, len(l.cols))
	for _, c := range l.cols {
		if _, ok := skip[c.name]; ok {
			continue
		}
		out = append(out, rv.FieldByIndex(c.index).Interface())
	}
	return out
}

// assignments returns column -> value for v, ready for squirrel SetMap.
func (l *columnLayout) assignments(v any, skip map[string]struct{}) map[string]any {
	names := l.names(skip)
	vals := l.row(v, skip)
	out := make(map[string]any, len(names))
	for i, name := range names {
		out[name] = vals[i]
	}
	return out
}
