package observation

import "github.com/delaneyj/observatory/internal/reflectx"

// PropertyObserver intercepts writes to one data property of an Object.
type PropertyObserver struct {
	sys    *System
	obj    *Object
	prop   *property
	flush  FlushMode
	subs   Subscribers[Subscriber]
	queued bool
	old    any
}

func newPropertyObserver(sys *System, o *Object, p *property) *PropertyObserver {
	return &PropertyObserver{sys: sys, obj: o, prop: p, flush: p.flush}
}

func (o *PropertyObserver) Value() any {
	return o.prop.value
}

func (o *PropertyObserver) SetValue(v any) error {
	old := o.prop.value
	if reflectx.Same(old, v) {
		return nil
	}
	if err := o.obj.write(o.prop, v); err != nil {
		return err
	}
	o.notify(v, old)
	return nil
}

func (o *PropertyObserver) notify(newValue, oldValue any) {
	if o.subs.Len() == 0 {
		return
	}
	if o.sys.flushMode(o.flush) == FlushSync {
		o.sys.deliverChange(&o.subs, newValue, oldValue)
		return
	}
	if !o.queued {
		o.queued = true
		o.old = oldValue
		o.sys.queue.Enqueue(o)
	}
}

// Flush implements Task: it delivers the value as it stands now against the
// value it had when the first change of the cycle was queued.
func (o *PropertyObserver) Flush() {
	if !o.queued {
		return
	}
	o.queued = false
	old := o.old
	o.old = nil
	cur := o.prop.value
	if reflectx.Same(cur, old) {
		return
	}
	o.sys.deliverChange(&o.subs, cur, old)
}

// Discard implements Discarder.
func (o *PropertyObserver) Discard() {
	o.queued = false
	o.old = nil
}

func (o *PropertyObserver) Subscribe(s Subscriber) {
	o.subs.Subscribe(s)
}

func (o *PropertyObserver) Unsubscribe(s Subscriber) {
	o.subs.Unsubscribe(s)
}
