package observation

import (
	"fmt"
	"strconv"

	"github.com/delaneyj/observatory/internal/reflectx"
)

// Property reads key from any supported value without recording it.
func Property(obj any, key string) any {
	switch o := obj.(type) {
	case nil:
		return nil
	case *Object:
		return o.Get(key)
	case *Array:
		if key == "length" {
			return o.Len()
		}
		if i, err := strconv.Atoi(key); err == nil {
			return o.At(i)
		}
		return nil
	case *Map:
		if key == "size" {
			return o.Len()
		}
		v, _ := o.Get(key)
		return v
	case *Set:
		if key == "size" {
			return o.Len()
		}
		return nil
	}
	v, _ := reflectx.Get(obj, key)
	return v
}

// Read records key on w, then reads it. Plain Go values without identity,
// such as struct copies and strings, cannot change underneath the reader
// and are not recorded.
func Read(w Watcher, obj any, key string) any {
	if w != nil && hasIdentity(obj) {
		w.Observe(obj, key)
	}
	return Property(obj, key)
}

func hasIdentity(obj any) bool {
	switch obj.(type) {
	case nil:
		return false
	case *Object, *Array, *Map, *Set:
		return true
	}
	_, ok := reflectx.Identity(obj)
	return ok
}

// Assign writes key on obj. Writes to plain Go values go through their
// dirty-check observer when one exists so subscribers hear about them in
// the next flush.
func Assign(l *Locator, obj any, key string, v any) error {
	switch o := obj.(type) {
	case nil:
		return &Error{Kind: InvalidBindingTarget, Key: key, Cause: fmt.Errorf("assignment to a nil object")}
	case *Object:
		return o.Set(key, v)
	case *Array:
		if key == "length" {
			return (&LengthObserver{array: o}).SetValue(v)
		}
		i, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("observation: cannot assign %q of an array", key)
		}
		o.SetAt(i, v)
		return nil
	case *Map:
		o.Set(key, v)
		return nil
	case *Set:
		return fmt.Errorf("observation: cannot assign %q of a set", key)
	}
	if l != nil {
		if obs := l.cachedForeign(obj, key); obs != nil {
			return obs.SetValue(v)
		}
	}
	return reflectx.Set(obj, key, v)
}
