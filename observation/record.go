package observation

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Watcher is handed to getters and expressions for the length of one
// evaluation; every property it is told about becomes a dependency.
type Watcher interface {
	Observe(obj any, key string)
	ObserveCollection(c Collection)
}

func track(w Watcher, c Collection) {
	if w != nil {
		w.ObserveCollection(c)
	}
}

// Record is the set of observers an owner (binding or computed observer) is
// subscribed to. Between Begin and End it works as a Watcher; End drops
// every observer the evaluation did not touch.
type Record struct {
	sys         *System
	owner       Subscriber
	observers   mapset.Set[Observer]
	collections mapset.Set[*CollectionObserver]
	seen        mapset.Set[Observer]
	seenColl    mapset.Set[*CollectionObserver]
	tracking    bool
	err         error
}

func NewRecord(sys *System, owner Subscriber) *Record {
	return &Record{
		sys:         sys,
		owner:       owner,
		observers:   mapset.NewThreadUnsafeSet[Observer](),
		collections: mapset.NewThreadUnsafeSet[*CollectionObserver](),
		seen:        mapset.NewThreadUnsafeSet[Observer](),
		seenColl:    mapset.NewThreadUnsafeSet[*CollectionObserver](),
	}
}

// Begin starts one tracked evaluation.
func (r *Record) Begin() {
	r.tracking = true
	r.err = nil
	r.seen.Clear()
	r.seenColl.Clear()
}

func (r *Record) Observe(obj any, key string) {
	if obj == nil {
		return
	}
	obs, err := r.sys.locator.Observer(obj, key)
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		return
	}
	r.add(obs)
}

func (r *Record) ObserveCollection(c Collection) {
	if c == nil {
		return
	}
	obs := r.sys.locator.CollectionObserver(c)
	if r.tracking {
		r.seenColl.Add(obs)
	}
	if r.collections.Add(obs) {
		if cs, ok := r.owner.(CollectionSubscriber); ok {
			obs.SubscribeCollection(cs)
		} else {
			obs.Subscribe(r.owner)
		}
	}
}

// Add subscribes the owner to obs directly.
func (r *Record) Add(obs Observer) {
	r.add(obs)
}

func (r *Record) add(obs Observer) {
	if r.tracking {
		r.seen.Add(obs)
	}
	if r.observers.Add(obs) {
		obs.Subscribe(r.owner)
	}
}

// End finishes the evaluation started by Begin, unsubscribing from stale
// observers, and returns the first locator error met on the way.
func (r *Record) End() error {
	if !r.tracking {
		return nil
	}
	r.tracking = false
	for _, obs := range r.observers.Difference(r.seen).ToSlice() {
		r.observers.Remove(obs)
		obs.Unsubscribe(r.owner)
	}
	for _, obs := range r.collections.Difference(r.seenColl).ToSlice() {
		r.collections.Remove(obs)
		r.unsubscribeCollection(obs)
	}
	err := r.err
	r.err = nil
	return err
}

// Clear unsubscribes from everything.
func (r *Record) Clear() {
	r.tracking = false
	r.err = nil
	for _, obs := range r.observers.ToSlice() {
		obs.Unsubscribe(r.owner)
	}
	for _, obs := range r.collections.ToSlice() {
		r.unsubscribeCollection(obs)
	}
	r.observers.Clear()
	r.collections.Clear()
	r.seen.Clear()
	r.seenColl.Clear()
}

func (r *Record) unsubscribeCollection(obs *CollectionObserver) {
	if cs, ok := r.owner.(CollectionSubscriber); ok {
		obs.UnsubscribeCollection(cs)
		return
	}
	obs.Unsubscribe(r.owner)
}

// Len is the number of observers currently subscribed to.
func (r *Record) Len() int {
	return r.observers.Cardinality() + r.collections.Cardinality()
}

// Observes reports whether the owner is subscribed to obs.
func (r *Record) Observes(obs Observer) bool {
	return r.observers.Contains(obs)
}
