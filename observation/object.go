package observation

import (
	"fmt"
	"slices"
)

// Getter computes an accessor property. Every property read through w is
// recorded as a dependency; w may be nil.
type Getter func(w Watcher, self *Object) any

// Setter handles writes to an accessor property.
type Setter func(self *Object, v any) error

// Descriptor defines one property of an Object.
type Descriptor struct {
	Value any
	Get   Getter
	Set   Setter
	// ReadOnly rejects writes to a data property.
	ReadOnly bool
	// Fixed makes the property non-configurable, and therefore
	// non-observable.
	Fixed bool
	Flush FlushMode

	// Deps, when set, replaces dependency capture for accessors.
	Deps []string
	Deep bool
}

type property struct {
	key      string
	value    any
	get      Getter
	set      Setter
	readOnly bool
	fixed    bool
	flush    FlushMode
	deps     []string
	deep     bool
	observer Observer
}

// Object is an observable property bag, the Go stand-in for a view-model.
// Observers created for its properties live on the object itself.
type Object struct {
	keys   []string
	props  map[string]*property
	frozen bool
	sealed bool
}

// NewObject builds an object from alternating key/value pairs.
func NewObject(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic("observation: NewObject needs key/value pairs")
	}
	o := &Object{props: make(map[string]*property, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("observation: object key %v is not a string", kv[i]))
		}
		o.add(&property{key: key, value: kv[i+1]})
	}
	return o
}

func (o *Object) add(p *property) {
	if o.props == nil {
		o.props = map[string]*property{}
	}
	if _, ok := o.props[p.key]; !ok {
		o.keys = append(o.keys, p.key)
	}
	o.props[p.key] = p
}

// DefineProperty adds or redefines key.
func (o *Object) DefineProperty(key string, d Descriptor) error {
	existing := o.props[key]
	switch {
	case existing == nil && (o.frozen || o.sealed):
		return fmt.Errorf("observation: cannot define %q on a non-extensible object", key)
	case existing != nil && (existing.fixed || o.frozen || o.sealed):
		return fmt.Errorf("observation: cannot redefine non-configurable property %q", key)
	case existing != nil && existing.observer != nil:
		return fmt.Errorf("observation: cannot redefine observed property %q", key)
	case d.Get == nil && (d.Set != nil || len(d.Deps) > 0 || d.Deep):
		return fmt.Errorf("observation: accessor options on data property %q", key)
	}
	o.add(&property{
		key:      key,
		value:    d.Value,
		get:      d.Get,
		set:      d.Set,
		readOnly: d.ReadOnly,
		fixed:    d.Fixed,
		flush:    d.Flush,
		deps:     slices.Clone(d.Deps),
		deep:     d.Deep,
	})
	return nil
}

// ComputedOption configures DefineComputed.
type ComputedOption func(*Descriptor)

// Deps declares the dependency paths (dotted, relative to the object) and
// turns off automatic capture.
func Deps(paths ...string) ComputedOption {
	return func(d *Descriptor) {
		d.Deps = append(d.Deps, paths...)
	}
}

// Deep also observes everything reachable from each dependency's value.
func Deep() ComputedOption {
	return func(d *Descriptor) {
		d.Deep = true
	}
}

func WithFlush(mode FlushMode) ComputedOption {
	return func(d *Descriptor) {
		d.Flush = mode
	}
}

func WithSetter(set Setter) ComputedOption {
	return func(d *Descriptor) {
		d.Set = set
	}
}

// DefineComputed adds an accessor property computed by get.
func (o *Object) DefineComputed(key string, get Getter, opts ...ComputedOption) error {
	d := Descriptor{Get: get}
	for _, opt := range opts {
		opt(&d)
	}
	return o.DefineProperty(key, d)
}

// SetFlush sets the delivery mode of an existing, not yet observed data
// property.
func (o *Object) SetFlush(key string, mode FlushMode) error {
	p := o.props[key]
	if p == nil {
		return fmt.Errorf("observation: no property %q", key)
	}
	switch obs := p.observer.(type) {
	case nil:
		p.flush = mode
	case *PropertyObserver:
		obs.flush = mode
	case *ComputedObserver:
		obs.flush = mode
	}
	return nil
}

func (o *Object) Has(key string) bool {
	_, ok := o.props[key]
	return ok
}

func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

func (o *Object) Len() int {
	return len(o.keys)
}

// Get reads key without recording a dependency. Missing keys read as nil.
func (o *Object) Get(key string) any {
	p := o.props[key]
	switch {
	case p == nil:
		return nil
	case p.get == nil:
		return p.value
	}
	if c, ok := p.observer.(*ComputedObserver); ok {
		return c.Value()
	}
	return p.get(nil, o)
}

// Read records key on w and returns its value.
func (o *Object) Read(w Watcher, key string) any {
	if w != nil {
		w.Observe(o, key)
	}
	return o.Get(key)
}

// Set writes key, notifying its observer if it has one. Missing keys are
// added as plain data properties.
func (o *Object) Set(key string, v any) error {
	p := o.props[key]
	if p == nil {
		if o.frozen || o.sealed {
			return fmt.Errorf("observation: cannot add %q to a non-extensible object", key)
		}
		o.add(&property{key: key, value: v})
		return nil
	}
	if acc, ok := p.observer.(Accessor); ok {
		return acc.SetValue(v)
	}
	return o.write(p, v)
}

func (o *Object) write(p *property, v any) error {
	switch {
	case p.get != nil:
		if p.set == nil {
			return fmt.Errorf("observation: property %q has a getter but no setter", p.key)
		}
		return p.set(o, v)
	case o.frozen:
		return fmt.Errorf("observation: cannot assign %q of a frozen object", p.key)
	case p.readOnly:
		return fmt.Errorf("observation: cannot assign read-only property %q", p.key)
	}
	p.value = v
	return nil
}

// Freeze makes every property read-only and non-configurable.
func (o *Object) Freeze() {
	o.frozen = true
	o.sealed = true
}

// Seal stops properties from being added.
func (o *Object) Seal() {
	o.sealed = true
}

func (o *Object) IsFrozen() bool {
	return o.frozen
}
