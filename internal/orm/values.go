package orm

import (
	"encoding/json"
	"maps"
	"math"
	"reflect"
	"sort"
)

// Values maps field names to field values.
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Merge overlays other onto v in place and returns v.
func (v Values) Merge(other Values) Values {
	maps.Copy(v, other)
	return v
}

// Keys returns the field names in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ID returns the record id stored under key, if any.
func (v Values) ID(key string) (ID, bool) {
	return AsID(v[key])
}

// IDs returns the list of record ids stored under key.
func (v Values) IDs(key string) []ID {
	ids, _ := AsIDs(v[key])
	return ids
}

// String returns the string stored under key or "".
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Bool returns the truthiness of the value stored under key.
func (v Values) Bool(key string) bool {
	return Truthy(v[key])
}

// Truthy follows the host convention where false, nil, 0 and "" are unset.
func Truthy(val any) bool {
	switch x := val.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if id, ok := AsID(val); ok {
		return id != 0
	}
	if f, ok := val.(float64); ok {
		return f != 0
	}
	return true
}

// AsID converts an integral value of any numeric representation to an ID.
// false and nil are reported as absent.
func AsID(val any) (ID, bool) {
	switch x := val.(type) {
	case int:
		return ID(x), true
	case int32:
		return ID(x), true
	case int64:
		return x, true
	case uint:
		return ID(x), true
	case uint32:
		return ID(x), true
	case float64:
		if x == math.Trunc(x) {
			return ID(x), true
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
	case Ref:
		return x.ID, true
	}
	return 0, false
}

// AsIDs converts a slice of integral values to IDs.
func AsIDs(val any) ([]ID, bool) {
	switch x := val.(type) {
	case nil:
		return nil, true
	case []ID:
		return x, true
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]ID, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		id, ok := AsID(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

// Normalize rewrites decoded JSON numbers into int64 where integral and
// float64 otherwise, recursing into maps and slices.
func Normalize(val any) any {
	switch x := val.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]any:
		out := make(Values, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case Values:
		out := make(Values, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	default:
		return val
	}
}

// NormalizeValues applies Normalize to every value of v.
func NormalizeValues(v Values) Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, e := range v {
		out[k] = Normalize(e)
	}
	return out
}
