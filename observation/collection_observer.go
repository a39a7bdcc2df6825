package observation

import (
	"fmt"
	"strconv"

	"github.com/delaneyj/observatory/internal/reflectx"
)

// CollectionKey is the property key that names a collection's own change
// channel in Locator.Observer.
const CollectionKey = "$collection"

// CollectionObserver is the single observer of one Array, Map or Set. While
// it has subscribers it accumulates an IndexMap relative to the last state
// it delivered.
type CollectionObserver struct {
	sys        *System
	collection Collection
	flush      FlushMode
	subs       Subscribers[Subscriber]
	collSubs   Subscribers[CollectionSubscriber]
	pending    *IndexMap
	queued     bool

	length   *LengthObserver
	size     *SizeObserver
	elements map[any]*ElementObserver
}

func newCollectionObserver(sys *System, c Collection) *CollectionObserver {
	return &CollectionObserver{sys: sys, collection: c}
}

func (c *CollectionObserver) Collection() Collection {
	return c.collection
}

// Value returns the collection itself.
func (c *CollectionObserver) Value() any {
	return c.collection
}

// SetFlush switches between batched and sync delivery.
func (c *CollectionObserver) SetFlush(mode FlushMode) {
	c.flush = mode
}

// Subscribe registers a plain change subscriber; it is told
// HandleChange(collection, collection) once per delivered mutation.
func (c *CollectionObserver) Subscribe(s Subscriber) {
	if cs, ok := s.(CollectionSubscriber); ok {
		c.SubscribeCollection(cs)
		return
	}
	c.subs.Subscribe(s)
}

func (c *CollectionObserver) Unsubscribe(s Subscriber) {
	if cs, ok := s.(CollectionSubscriber); ok {
		c.UnsubscribeCollection(cs)
		return
	}
	c.subs.Unsubscribe(s)
	c.idle()
}

func (c *CollectionObserver) SubscribeCollection(s CollectionSubscriber) {
	c.collSubs.Subscribe(s)
}

func (c *CollectionObserver) UnsubscribeCollection(s CollectionSubscriber) {
	c.collSubs.Unsubscribe(s)
	c.idle()
}

func (c *CollectionObserver) observed() bool {
	return c.subs.Len()+c.collSubs.Len() > 0
}

func (c *CollectionObserver) idle() {
	if !c.observed() {
		c.pending = nil
	}
}

// begin returns the map the next mutation must update, or nil when nobody
// listens.
func (c *CollectionObserver) begin(n int) *IndexMap {
	if c == nil || !c.observed() {
		return nil
	}
	if c.pending == nil {
		c.pending = identityIndexMap(n)
	}
	return c.pending
}

func (c *CollectionObserver) changed() {
	if c == nil || c.pending == nil {
		return
	}
	if c.sys.flushMode(c.flush) == FlushSync {
		c.deliver()
		return
	}
	if !c.queued {
		c.queued = true
		c.sys.queue.Enqueue(c)
	}
}

// Flush implements Task.
func (c *CollectionObserver) Flush() {
	c.queued = false
	c.deliver()
}

// Discard implements Discarder. Changes not yet delivered stay pending.
func (c *CollectionObserver) Discard() {
	c.queued = false
}

func (c *CollectionObserver) deliver() {
	m := c.pending
	c.pending = nil
	if m == nil || m.IsIdentity() {
		return
	}
	c.collSubs.Each(func(s CollectionSubscriber) {
		c.sys.guard(s, func() error {
			return s.HandleCollectionChange(*m, c.collection)
		})
	})
	c.sys.deliverChange(&c.subs, c.collection, c.collection)
}

// LengthObserver observes Array length. Setting it truncates or grows the
// array.
type LengthObserver struct {
	sys   *System
	array *Array
	subs  Subscribers[Subscriber]
	last  int
}

func (o *LengthObserver) Value() any { return o.array.Len() }

func (o *LengthObserver) SetValue(v any) error {
	n, ok := toInt(v)
	if !ok {
		return fmt.Errorf("observation: array length must be an integer, got %T", v)
	}
	o.array.Truncate(n)
	return nil
}

func (o *LengthObserver) Subscribe(s Subscriber) {
	if o.subs.Subscribe(s) && o.subs.Len() == 1 {
		o.last = o.array.Len()
		o.sys.locator.CollectionObserver(o.array).SubscribeCollection(o)
	}
}

func (o *LengthObserver) Unsubscribe(s Subscriber) {
	if o.subs.Unsubscribe(s) && o.subs.Len() == 0 {
		o.sys.locator.CollectionObserver(o.array).UnsubscribeCollection(o)
	}
}

func (o *LengthObserver) HandleCollectionChange(IndexMap, Collection) error {
	n := o.array.Len()
	if n == o.last {
		return nil
	}
	old := o.last
	o.last = n
	o.sys.deliverChange(&o.subs, n, old)
	return nil
}

// SizeObserver observes the size of a Map or Set. It is read-only.
type SizeObserver struct {
	sys        *System
	collection Collection
	subs       Subscribers[Subscriber]
	last       int
}

func (o *SizeObserver) Value() any { return o.collection.Len() }

func (o *SizeObserver) Subscribe(s Subscriber) {
	if o.subs.Subscribe(s) && o.subs.Len() == 1 {
		o.last = o.collection.Len()
		o.sys.locator.CollectionObserver(o.collection).SubscribeCollection(o)
	}
}

func (o *SizeObserver) Unsubscribe(s Subscriber) {
	if o.subs.Unsubscribe(s) && o.subs.Len() == 0 {
		o.sys.locator.CollectionObserver(o.collection).UnsubscribeCollection(o)
	}
}

func (o *SizeObserver) HandleCollectionChange(IndexMap, Collection) error {
	n := o.collection.Len()
	if n == o.last {
		return nil
	}
	old := o.last
	o.last = n
	o.sys.deliverChange(&o.subs, n, old)
	return nil
}

// ElementObserver observes one Array index or one Map key.
type ElementObserver struct {
	sys        *System
	collection Collection
	key        any
	subs       Subscribers[Subscriber]
	last       any
}

func (o *ElementObserver) Value() any {
	return elementOf(o.collection, o.key)
}

func (o *ElementObserver) SetValue(v any) error {
	switch c := o.collection.(type) {
	case *Array:
		c.SetAt(o.key.(int), v)
	case *Map:
		c.Set(o.key, v)
	}
	return nil
}

func (o *ElementObserver) Subscribe(s Subscriber) {
	if o.subs.Subscribe(s) && o.subs.Len() == 1 {
		o.last = o.Value()
		o.sys.locator.CollectionObserver(o.collection).SubscribeCollection(o)
	}
}

func (o *ElementObserver) Unsubscribe(s Subscriber) {
	if o.subs.Unsubscribe(s) && o.subs.Len() == 0 {
		o.sys.locator.CollectionObserver(o.collection).UnsubscribeCollection(o)
	}
}

func (o *ElementObserver) HandleCollectionChange(IndexMap, Collection) error {
	v := o.Value()
	if reflectx.Same(v, o.last) {
		return nil
	}
	old := o.last
	o.last = v
	o.sys.deliverChange(&o.subs, v, old)
	return nil
}

func elementOf(c Collection, key any) any {
	switch c := c.(type) {
	case *Array:
		return c.At(key.(int))
	case *Map:
		v, _ := c.Get(key)
		return v
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
