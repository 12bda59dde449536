package value

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// From converts a Go value into a Value.
//
// Values of the four kinds pass through. Go strings, bools, byte slices,
// slices, arrays and maps are the natural spellings of Str, Bool, Seq and Map;
// map keys are stored under their textual form. Go maps are visited in sorted
// key order so the result is deterministic.
//
// Everything else (numbers, times, structs) falls back to its textual form and
// becomes a Str. nil becomes the empty string.
func From(v any) Value {
	switch x := v.(type) {
	case nil:
		return Str("")
	case Value:
		return x
	case string:
		return Str(x)
	case bool:
		return Bool(x)
	case []byte:
		return Str(x)
	case []any:
		out := make(Seq, len(x))
		for i, e := range x {
			out[i] = From(e)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		m := NewMap(len(keys))
		for _, k := range keys {
			m.Set(k, From(x[k]))
		}
		return m
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make(Seq, rv.Len())
		for i := range out {
			out[i] = From(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		return fromReflectMap(rv)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Str("")
		}
		return From(rv.Elem().Interface())
	}
	return Str(Text(v))
}

// Text returns the textual form used for values without a direct
// representation.
func Text(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// AsMap reports whether v is a map-shaped value and converts it.
func AsMap(v any) (*Map, bool) {
	switch x := v.(type) {
	case *Map:
		return x, x != nil
	case map[string]any:
		return From(x).(*Map), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && !rv.IsNil() {
		return fromReflectMap(rv), true
	}
	return nil, false
}

func fromReflectMap(rv reflect.Value) *Map {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: Text(iter.Key().Interface()), val: iter.Value()})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.key, b.key)
	})
	m := NewMap(len(entries))
	for _, e := range entries {
		m.Set(e.key, From(e.val.Interface()))
	}
	return m
}

// Native converts v into plain Go values: string, bool, []any and
// map[string]any. Map order is lost.
func Native(v Value) any {
	switch x := v.(type) {
	case Str:
		return string(x)
	case Bool:
		return bool(x)
	case Seq:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Native(e)
		}
		return out
	case *Map:
		out := make(map[string]any, x.Len())
		for k, e := range x.All() {
			out[k] = Native(e)
		}
		return out
	}
	return nil
}
