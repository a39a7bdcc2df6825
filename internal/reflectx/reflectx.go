// Package reflectx reads and writes properties of plain Go values (struct
// pointers and string-keyed maps) that are not observable on their own.
package reflectx

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Get returns the named field or map entry of obj.
func Get(obj any, key string) (any, bool) {
	v, ok := lookup(obj, key)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

// Has reports whether obj exposes key.
func Has(obj any, key string) bool {
	_, ok := lookup(obj, key)
	return ok
}

// Set writes v into the named field or map entry of obj. Struct values must
// be passed by pointer.
func Set(obj any, key string, v any) error {
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("reflectx: map key type %s is not a string", rv.Type().Key())
		}
		if rv.IsNil() {
			return fmt.Errorf("reflectx: assignment to %q of a nil map", key)
		}
		val, err := convert(v, rv.Type().Elem())
		if err != nil {
			return fmt.Errorf("reflectx: %q: %w", key, err)
		}
		rv.SetMapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()), val)
		return nil
	case reflect.Pointer:
		if rv.IsNil() {
			return fmt.Errorf("reflectx: assignment to %q of a nil %s", key, rv.Type())
		}
		elem := rv.Elem()
		if elem.Kind() != reflect.Struct {
			return fmt.Errorf("reflectx: %s has no fields", rv.Type())
		}
		f, ok := field(elem, key)
		if !ok {
			return fmt.Errorf("reflectx: %s has no field %q", elem.Type(), key)
		}
		if !f.CanSet() {
			return fmt.Errorf("reflectx: field %q of %s is not settable", key, elem.Type())
		}
		val, err := convert(v, f.Type())
		if err != nil {
			return fmt.Errorf("reflectx: %q: %w", key, err)
		}
		f.Set(val)
		return nil
	default:
		return fmt.Errorf("reflectx: cannot assign %q on %T", key, obj)
	}
}

// Identity returns a stable identity for reference values (pointers and
// maps). Other values have no identity.
func Identity(obj any) (uintptr, bool) {
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

// Comparable reports whether v can be used with == without panicking. It
// looks at the dynamic values inside interface fields, so a struct holding
// a slice in an any field is not comparable.
func Comparable(v any) bool {
	if v == nil {
		return true
	}
	return canCompare(reflect.ValueOf(v))
}

func canCompare(v reflect.Value) bool {
	return v.Type().Comparable() && v.Comparable()
}

// Same compares by identity: comparable values with ==, slices by backing
// array and length, maps and funcs by pointer. Anything else is never the
// same.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if canCompare(va) && canCompare(vb) {
		return a == b
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

func lookup(obj any, key string) (reflect.Value, bool) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return field(rv, key)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return reflect.Value{}, false
		}
		return v, true
	}
	return reflect.Value{}, false
}

func field(rv reflect.Value, key string) (reflect.Value, bool) {
	if f := rv.FieldByName(key); f.IsValid() && f.CanInterface() {
		return f, true
	}
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return reflect.Value{}, false
	}
	exported := string(unicode.ToUpper(r)) + key[size:]
	if f := rv.FieldByName(exported); f.IsValid() && f.CanInterface() {
		return f, true
	}
	return reflect.Value{}, false
}

func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String && t.Kind() != reflect.String:
		return rv.Convert(t), nil
	case rv.Kind() == reflect.String && t.Kind() == reflect.String:
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}
