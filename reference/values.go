package reference

import (
	"fmt"
	"reflect"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Undefined and value coercion
// ---------------------------------------------------------------------------

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the value of a path that does not resolve to anything.
// It renders as the empty string, like nil.
var Undefined any = undefined{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// IsNullish reports whether v is nil or Undefined.
func IsNullish(v any) bool {
	return v == nil || IsUndefined(v)
}

// PropertyLookup can be implemented by host values that resolve their own
// properties. ok=false means the property is absent.
type PropertyLookup interface {
	LookupProperty(key string) (value any, ok bool)
}

// Lookup resolves key on v. Anything that cannot carry properties
// (nil, booleans, numbers, missing keys) yields Undefined. The length of
// a string is counted in characters, not bytes.
func Lookup(v any, key string) any {
	switch x := v.(type) {
	case nil, undefined:
		return Undefined
	case PropertyLookup:
		if val, ok := x.LookupProperty(key); ok {
			return val
		}
		return Undefined
	case map[string]any:
		if val, ok := x[key]; ok {
			return val
		}
		if key == "length" {
			return len(x)
		}
		return Undefined
	case string:
		if key == "length" {
			return utf8.RuneCountInString(x)
		}
		return Undefined
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Undefined
	}
	return lookupReflect(reflect.ValueOf(v), key)
}

func lookupReflect(rv reflect.Value, key string) any {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Undefined
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			val := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			if val.IsValid() {
				return val.Interface()
			}
		}
		if key == "length" {
			return rv.Len()
		}
	case reflect.Slice, reflect.Array:
		if key == "length" {
			return rv.Len()
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < rv.Len() {
			return rv.Index(i).Interface()
		}
	case reflect.Struct:
		if f := fieldByKey(rv, key); f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	}
	return Undefined
}

// fieldByKey finds an exported field named key, accepting a lower-case
// first letter for the usual template spelling. A field promoted through
// a nil embedded pointer is absent.
func fieldByKey(rv reflect.Value, key string) reflect.Value {
	if f := fieldByName(rv, key); f.IsValid() {
		return f
	}
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return reflect.Value{}
	}
	return fieldByName(rv, string(unicode.ToUpper(r))+key[size:])
}

func fieldByName(rv reflect.Value, name string) reflect.Value {
	sf, ok := rv.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.Value{}
	}
	f, err := rv.FieldByIndexErr(sf.Index)
	if err != nil {
		return reflect.Value{}
	}
	return f
}

// ToString renders v the way appended content and attributes see it.
func ToString(v any) string {
	switch x := v.(type) {
	case nil, undefined:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// ToBool is the truthiness used by conditionals. Empty collections are
// falsy.
func ToBool(v any) bool {
	switch x := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	}
	return true
}

// Len returns the number of items in a list-like value, and whether v is
// list-like at all.
func Len(v any) (int, bool) {
	if IsNullish(v) {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), true
	}
	return 0, false
}

// Index returns item i of a list-like value.
func Index(v any, i int) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if i >= 0 && i < rv.Len() {
			return rv.Index(i).Interface()
		}
	}
	return Undefined
}
