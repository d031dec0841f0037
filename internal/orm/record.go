package orm

import (
	"bytes"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Record holds the column values of one row of a schema. Values set under
// names the schema does not map land in a side table that is never persisted.
type Record struct {
	schema *Schema
	values map[string]any
	extra  map[string]any
}

// New creates a record for the schema, routing each value to its column or
// to the side table.
func (s *Schema) New(values map[string]any) *Record {
	r := &Record{schema: s, values: make(map[string]any, len(s.columns))}
	for k, v := range values {
		r.Set(k, v)
	}
	return r
}

// Schema returns the record's schema
func (r *Record) Schema() *Schema { return r.schema }

// Set stores a value. Unmapped names go to the side table.
func (r *Record) Set(name string, v any) {
	if _, ok := r.schema.byName[name]; ok {
		r.values[name] = v
		return
	}
	if r.extra == nil {
		r.extra = make(map[string]any)
	}
	r.extra[name] = v
}

// Unset removes a column value so its default applies on the next write.
func (r *Record) Unset(name string) {
	delete(r.values, name)
	delete(r.extra, name)
}

// Get returns a value and whether it is present.
func (r *Record) Get(name string) (any, bool) {
	if v, ok := r.values[name]; ok {
		return v, true
	}
	v, ok := r.extra[name]
	return v, ok
}

// Has reports whether a mapped column has a value.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// PrimaryKey returns the primary key value, if set.
func (r *Record) PrimaryKey() (any, bool) {
	return r.Get(r.schema.primaryKey.name)
}

// Values returns a copy of the mapped column values.
func (r *Record) Values() map[string]any {
	return maps.Clone(r.values)
}

// Extra returns a copy of the unmapped values.
func (r *Record) Extra() map[string]any {
	return maps.Clone(r.extra)
}

// String returns a column as a string, or "" when absent.
func (r *Record) String(name string) string {
	v, _ := r.Get(name)
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

// Int64 returns a column as an integer, or 0 when absent or not numeric.
func (r *Record) Int64(name string) int64 {
	v, _ := r.Get(name)
	n, _ := convertValue(KindInteger, v)
	i, _ := n.(int64)
	return i
}

// Float64 returns a column as a float, or 0 when absent or not numeric.
func (r *Record) Float64(name string) float64 {
	v, _ := r.Get(name)
	n, _ := convertValue(KindFloat, v)
	f, _ := n.(float64)
	return f
}

// Bool returns a column as a boolean, or false when absent.
func (r *Record) Bool(name string) bool {
	v, _ := r.Get(name)
	n, _ := convertValue(KindBoolean, v)
	b, _ := n.(bool)
	return b
}

// Equal reports whether both records hold the same value in every named
// column, compared after converting to the column kind. With no names, all
// mapped columns are compared.
func (r *Record) Equal(other *Record, names ...string) bool {
	if other == nil || r.schema != other.schema {
		return false
	}
	if len(names) == 0 {
		names = r.schema.columnNames()
	}
	for _, name := range names {
		f, ok := r.schema.byName[name]
		if !ok {
			return false
		}
		a, aok := r.values[name]
		b, bok := other.values[name]
		if aok != bok {
			return false
		}
		if !sameValue(f.kind, a, b) {
			return false
		}
	}
	return true
}

func sameValue(kind Kind, a, b any) bool {
	ca, errA := convertValue(kind, a)
	cb, errB := convertValue(kind, b)
	if errA != nil || errB != nil {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	if ba, ok := ca.([]byte); ok {
		bb, _ := cb.([]byte)
		return bytes.Equal(ba, bb)
	}
	return ca == cb
}

// convertValue normalizes a driver or caller value to the Go type of kind:
// int64, float64, bool, string or []byte. nil stays nil.
func convertValue(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindInteger, KindVersion:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case bool:
			if n {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			return strconv.ParseInt(n, 10, 64)
		case []byte:
			return strconv.ParseInt(string(n), 10, 64)
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case string:
			return strconv.ParseFloat(n, 64)
		case []byte:
			return strconv.ParseFloat(string(n), 64)
		}
	case KindBoolean:
		switch n := v.(type) {
		case bool:
			return n, nil
		case int64:
			return n != 0, nil
		case int:
			return n != 0, nil
		case float64:
			return n != 0, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(n))
		case []byte:
			return strconv.ParseBool(strings.TrimSpace(string(n)))
		}
	case KindString, KindText:
		switch n := v.(type) {
		case string:
			return n, nil
		case []byte:
			return string(n), nil
		}
		return fmt.Sprint(v), nil
	case KindBlob:
		switch n := v.(type) {
		case []byte:
			return n, nil
		case string:
			return []byte(n), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, kind)
}
