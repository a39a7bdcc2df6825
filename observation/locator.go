package observation

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/delaneyj/observatory/internal/reflectx"
)

type foreignKey struct {
	id  uintptr
	typ reflect.Type
	key string
}

// Locator hands out the one canonical observer for each (object, key).
// Observers of Objects and collections are stored on the observed value, so
// they are collected with it. Observers of plain Go values are cached here
// and evicted when their last subscriber leaves.
type Locator struct {
	sys     *System
	foreign map[foreignKey]*DirtyCheckObserver
}

// Observer returns the observer for key on obj, creating it on first use.
func (l *Locator) Observer(obj any, key string) (Observer, error) {
	switch o := obj.(type) {
	case nil:
		return nil, &Error{Kind: InvalidBindingTarget, Key: key, Cause: fmt.Errorf("cannot observe a nil object")}
	case *Object:
		return l.objectObserver(o, key)
	case *Array:
		return l.arrayObserver(o, key)
	case *Map:
		return l.mapObserver(o, key)
	case *Set:
		switch key {
		case CollectionKey:
			return l.CollectionObserver(o), nil
		case "size":
			return l.sizeObserver(o), nil
		}
		return nil, nonObservable(key, "sets only expose their size and collection channel")
	}
	return l.dirtyCheckObserver(obj, key)
}

// Accessor is Observer for callers that need to write.
func (l *Locator) Accessor(obj any, key string) (Accessor, error) {
	obs, err := l.Observer(obj, key)
	if err != nil {
		return nil, err
	}
	acc, ok := obs.(Accessor)
	if !ok {
		return nil, fmt.Errorf("observation: %q of %T is read-only", key, obj)
	}
	return acc, nil
}

// CollectionObserver returns the shared observer of c.
func (l *Locator) CollectionObserver(c Collection) *CollectionObserver {
	if obs := c.observer(); obs != nil {
		return obs
	}
	obs := newCollectionObserver(l.sys, c)
	c.attach(obs)
	return obs
}

func (l *Locator) objectObserver(o *Object, key string) (Observer, error) {
	p := o.props[key]
	if p == nil {
		if o.frozen || o.sealed {
			return nil, nonObservable(key, "object is not extensible")
		}
		p = &property{key: key}
		o.add(p)
	}
	if p.observer != nil {
		return p.observer, nil
	}
	if p.get != nil {
		p.observer = newComputedObserver(l.sys, o, p)
		return p.observer, nil
	}
	switch {
	case o.frozen:
		return nil, nonObservable(key, "object is frozen")
	case p.fixed:
		return nil, nonObservable(key, "property is not configurable")
	}
	p.observer = newPropertyObserver(l.sys, o, p)
	return p.observer, nil
}

func (l *Locator) arrayObserver(a *Array, key string) (Observer, error) {
	switch key {
	case CollectionKey:
		return l.CollectionObserver(a), nil
	case "length":
		c := l.CollectionObserver(a)
		if c.length == nil {
			c.length = &LengthObserver{sys: l.sys, array: a}
		}
		return c.length, nil
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return nil, nonObservable(key, "arrays only expose indices, length and their collection channel")
	}
	return l.elementObserver(a, i), nil
}

func (l *Locator) mapObserver(m *Map, key string) (Observer, error) {
	switch key {
	case CollectionKey:
		return l.CollectionObserver(m), nil
	case "size":
		return l.sizeObserver(m), nil
	}
	return l.elementObserver(m, key), nil
}

func (l *Locator) sizeObserver(c Collection) *SizeObserver {
	obs := l.CollectionObserver(c)
	if obs.size == nil {
		obs.size = &SizeObserver{sys: l.sys, collection: c}
	}
	return obs.size
}

func (l *Locator) elementObserver(c Collection, key any) *ElementObserver {
	obs := l.CollectionObserver(c)
	if obs.elements == nil {
		obs.elements = map[any]*ElementObserver{}
	}
	e, ok := obs.elements[key]
	if !ok {
		e = &ElementObserver{sys: l.sys, collection: c, key: key}
		obs.elements[key] = e
	}
	return e
}

func (l *Locator) dirtyCheckObserver(obj any, key string) (Observer, error) {
	id, ok := reflectx.Identity(obj)
	if !ok {
		return nil, nonObservable(key, fmt.Sprintf("%T has no identity to observe", obj))
	}
	fk := foreignKey{id: id, typ: reflect.TypeOf(obj), key: key}
	if obs, ok := l.foreign[fk]; ok {
		return obs, nil
	}
	if l.sys.dirtyCheck.Throw {
		return nil, nonObservable(key, fmt.Sprintf("%T can only be dirty checked", obj))
	}
	obs := newDirtyCheckObserver(l.sys, obj, key, fk)
	l.foreign[fk] = obs
	l.sys.diagnose(Diagnostic{Kind: DirtyCheckFallbackUsed, Target: obj, Key: key})
	return obs, nil
}

func (l *Locator) cachedForeign(obj any, key string) *DirtyCheckObserver {
	id, ok := reflectx.Identity(obj)
	if !ok {
		return nil
	}
	return l.foreign[foreignKey{id: id, typ: reflect.TypeOf(obj), key: key}]
}

func (l *Locator) evict(obs *DirtyCheckObserver) {
	if l.foreign[obs.fk] == obs {
		delete(l.foreign, obs.fk)
	}
}

// Cached is the number of plain Go value observers currently held.
func (l *Locator) Cached() int {
	return len(l.foreign)
}

func (l *Locator) reset() {
	l.foreign = map[foreignKey]*DirtyCheckObserver{}
}
