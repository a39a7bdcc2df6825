package observation

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/observatory/internal/reflectx"
)

// ComputedObserver observes an accessor property. While subscribed it holds
// a cached value and the set of properties the last evaluation read; any of
// them changing marks it dirty. Unsubscribed, it caches nothing and reads
// evaluate the getter directly.
type ComputedObserver struct {
	sys    *System
	obj    *Object
	prop   *property
	flush  FlushMode
	subs   Subscribers[Subscriber]
	record *Record

	value   any
	dirty   bool
	running bool
	rerun   bool
	queued  bool
	old     any
	visited mapset.Set[any]
	version uint64
	read    map[*ComputedObserver]uint64
}

func newComputedObserver(sys *System, o *Object, p *property) *ComputedObserver {
	c := &ComputedObserver{
		sys:     sys,
		obj:     o,
		prop:    p,
		flush:   p.flush,
		dirty:   true,
		visited: mapset.NewThreadUnsafeSet[any](),
		read:    map[*ComputedObserver]uint64{},
	}
	c.record = NewRecord(sys, c)
	return c
}

func (c *ComputedObserver) Value() any {
	if c.subs.Len() == 0 {
		return c.prop.get(nil, c.obj)
	}
	if c.dirty && !c.running {
		c.evaluate()
	}
	return c.value
}

// SetValue forwards to the property's setter.
func (c *ComputedObserver) SetValue(v any) error {
	if c.prop.set == nil {
		return fmt.Errorf("observation: computed property %q has no setter", c.prop.key)
	}
	return c.prop.set(c.obj, v)
}

func (c *ComputedObserver) Subscribe(s Subscriber) {
	if c.subs.Subscribe(s) && c.subs.Len() == 1 {
		c.evaluate()
	}
}

func (c *ComputedObserver) Unsubscribe(s Subscriber) {
	if c.subs.Unsubscribe(s) && c.subs.Len() == 0 {
		c.record.Clear()
		c.value = nil
		c.dirty = true
	}
}

// Dependencies is the number of observers the last evaluation subscribed to.
func (c *ComputedObserver) Dependencies() int {
	return c.record.Len()
}

func (c *ComputedObserver) HandleChange(_, _ any) error {
	c.invalidate()
	return nil
}

func (c *ComputedObserver) HandleCollectionChange(IndexMap, Collection) error {
	c.invalidate()
	return nil
}

func (c *ComputedObserver) invalidate() {
	if c.running {
		c.rerun = true
		return
	}
	if c.subs.Len() == 0 {
		c.dirty = true
		return
	}
	if c.sys.flushMode(c.flush) == FlushSync {
		old := c.value
		c.evaluate()
		if !reflectx.Same(c.value, old) {
			c.deliver(old)
		}
		return
	}
	if !c.queued {
		c.old = c.value
		c.queue()
	}
	c.dirty = true
}

func (c *ComputedObserver) queue() {
	c.queued = true
	c.sys.queue.Enqueue(c)
}

// Flush implements Task.
func (c *ComputedObserver) Flush() {
	if !c.queued {
		return
	}
	c.queued = false
	old := c.old
	c.old = nil
	if c.subs.Len() == 0 {
		return
	}
	if c.dirty {
		c.evaluate()
	}
	if reflectx.Same(c.value, old) {
		return
	}
	c.deliver(old)
}

// Discard implements Discarder. The next read evaluates again.
func (c *ComputedObserver) Discard() {
	c.queued = false
	c.old = nil
	c.dirty = true
}

// deliver notifies subscribers of the new value, skipping computed
// observers that already pulled it while evaluating this cycle.
func (c *ComputedObserver) deliver(old any) {
	c.subs.Each(func(sub Subscriber) {
		if next, ok := sub.(*ComputedObserver); ok && next.current(c) {
			return
		}
		c.sys.guard(sub, func() error {
			return sub.HandleChange(c.value, old)
		})
	})
}

// current reports whether the last evaluation read dep at its present
// version.
func (c *ComputedObserver) current(dep *ComputedObserver) bool {
	v, ok := c.read[dep]
	return ok && !c.dirty && v == dep.version
}

// evaluate runs the getter once, rebuilding the dependency set. A change to
// a dependency made by the getter itself schedules one more evaluation on
// the queue instead of recursing.
func (c *ComputedObserver) evaluate() {
	c.running = true
	c.rerun = false
	c.visited.Clear()
	c.record.Begin()

	v, ok := c.run()

	if err := c.record.End(); err != nil {
		c.sys.report(c, err)
	}
	c.running = false
	c.dirty = false
	if ok {
		if !reflectx.Same(v, c.value) {
			c.version++
		}
		c.value = v
	}
	clear(c.read)
	for _, obs := range c.record.observers.ToSlice() {
		if dep, ok := obs.(*ComputedObserver); ok && !dep.dirty {
			c.read[dep] = dep.version
		}
	}

	if c.rerun {
		c.rerun = false
		c.dirty = true
		c.sys.warn("computed property changed its own dependencies while evaluating", "key", c.prop.key)
		if !c.queued {
			c.old = c.value
			c.queue()
		}
	}
}

func (c *ComputedObserver) run() (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.sys.report(c, &Error{Kind: SubscriberThrew, Key: c.prop.key, Cause: fmt.Errorf("panic: %v", r)})
			ok = false
		}
	}()
	if len(c.prop.deps) > 0 {
		v = c.prop.get(nil, c.obj)
		for _, path := range c.prop.deps {
			c.observePath(path)
		}
		return v, true
	}
	return c.prop.get((*capture)(c), c.obj), true
}

func (c *ComputedObserver) observePath(path string) {
	var cur any = c.obj
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return
		}
		c.observe(cur, seg)
		cur = Property(cur, seg)
	}
	if c.prop.deep {
		c.walk(cur)
	}
}

func (c *ComputedObserver) observe(obj any, key string) {
	if !hasIdentity(obj) || obj == c.obj && key == c.prop.key {
		return
	}
	c.record.Observe(obj, key)
}

// walk subscribes to every property and collection reachable from v.
func (c *ComputedObserver) walk(v any) {
	switch v := v.(type) {
	case *Object:
		if !c.visited.Add(v) {
			return
		}
		for _, key := range v.keys {
			p := v.props[key]
			if p.get != nil {
				continue
			}
			if !v.frozen && !p.fixed {
				c.observe(v, key)
			}
			c.walk(p.value)
		}
	case *Array:
		if !c.visited.Add(v) {
			return
		}
		c.record.ObserveCollection(v)
		for _, item := range v.items {
			c.walk(item)
		}
	case *Map:
		if !c.visited.Add(v) {
			return
		}
		c.record.ObserveCollection(v)
		for _, k := range v.keys {
			c.walk(v.values[k])
		}
	case *Set:
		if !c.visited.Add(v) {
			return
		}
		c.record.ObserveCollection(v)
		for _, item := range v.values {
			c.walk(item)
		}
	}
}

// capture is the Watcher a computed getter sees.
type capture ComputedObserver

func (w *capture) Observe(obj any, key string) {
	c := (*ComputedObserver)(w)
	if obj == nil {
		return
	}
	c.observe(obj, key)
	if c.prop.deep {
		c.walk(Property(obj, key))
	}
}

func (w *capture) ObserveCollection(coll Collection) {
	c := (*ComputedObserver)(w)
	c.record.ObserveCollection(coll)
	if c.prop.deep {
		c.walk(coll)
	}
}
