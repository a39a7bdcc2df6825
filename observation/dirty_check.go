package observation

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/observatory/internal/reflectx"
)

// DirtyChecker polls the properties nothing else can observe. It checks once
// at the start of every flush cycle.
type DirtyChecker struct {
	sys     *System
	tracked []*DirtyCheckObserver
}

func (d *DirtyChecker) add(o *DirtyCheckObserver) {
	d.tracked = append(d.tracked, o)
}

func (d *DirtyChecker) remove(o *DirtyCheckObserver) {
	if i := slices.Index(d.tracked, o); i >= 0 {
		d.tracked = slices.Delete(d.tracked, i, i+1)
	}
}

// Check compares every tracked property with its last snapshot and notifies
// the ones that changed.
func (d *DirtyChecker) Check() {
	if d.sys.dirtyCheck.Disabled {
		return
	}
	for _, o := range slices.Clone(d.tracked) {
		o.check()
	}
}

// Len is the number of properties being polled.
func (d *DirtyChecker) Len() int {
	return len(d.tracked)
}

func (d *DirtyChecker) reset() {
	d.tracked = nil
}

// DirtyCheckObserver observes a field of a plain Go value by comparing it
// against a snapshot. Comparable values are compared with ==; anything else
// by a content fingerprint.
type DirtyCheckObserver struct {
	sys    *System
	obj    any
	key    string
	fk     foreignKey
	subs   Subscribers[Subscriber]
	last   any
	print  uint64
	queued bool
}

func newDirtyCheckObserver(sys *System, obj any, key string, fk foreignKey) *DirtyCheckObserver {
	return &DirtyCheckObserver{sys: sys, obj: obj, key: key, fk: fk}
}

func (o *DirtyCheckObserver) Value() any {
	v, _ := reflectx.Get(o.obj, o.key)
	return v
}

// SetValue writes the field; subscribers hear about it in the next flush.
func (o *DirtyCheckObserver) SetValue(v any) error {
	if err := reflectx.Set(o.obj, o.key, v); err != nil {
		return err
	}
	if o.subs.Len() > 0 && !o.queued {
		o.queued = true
		o.sys.queue.Enqueue(o)
	}
	return nil
}

// Flush implements Task.
func (o *DirtyCheckObserver) Flush() {
	o.queued = false
	o.check()
}

func (o *DirtyCheckObserver) Discard() {
	o.queued = false
}

func (o *DirtyCheckObserver) Subscribe(s Subscriber) {
	if o.subs.Subscribe(s) && o.subs.Len() == 1 {
		o.snapshot(o.Value())
		o.sys.dirty.add(o)
	}
}

func (o *DirtyCheckObserver) Unsubscribe(s Subscriber) {
	if o.subs.Unsubscribe(s) && o.subs.Len() == 0 {
		o.sys.dirty.remove(o)
		o.sys.locator.evict(o)
	}
}

func (o *DirtyCheckObserver) check() {
	if o.subs.Len() == 0 {
		return
	}
	cur := o.Value()
	if !o.changed(cur) {
		return
	}
	old := o.last
	o.snapshot(cur)
	o.sys.deliverChange(&o.subs, cur, old)
}

func (o *DirtyCheckObserver) snapshot(v any) {
	o.last = v
	if !reflectx.Comparable(v) {
		o.print = fingerprint(v)
	}
}

func (o *DirtyCheckObserver) changed(cur any) bool {
	if reflectx.Comparable(cur) && reflectx.Comparable(o.last) {
		return cur != o.last
	}
	if reflectx.Comparable(cur) != reflectx.Comparable(o.last) {
		return true
	}
	return fingerprint(cur) != o.print
}

// fingerprint hashes the printed content of v, so slices and maps mutated in
// place still read as changed.
func fingerprint(v any) uint64 {
	d := xxhash.New()
	fmt.Fprintf(d, "%s:%v", reflect.TypeOf(v), v)
	return d.Sum64()
}
