package binding

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/delaneyj/observatory/dom"
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/internal/reflectx"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
)

// Repeat renders one view per item of an iterable into Location, which it
// owns: views are kept as Location's trailing children.
//
// In-place collection mutations are reconciled from the delivered IndexMap,
// so unchanged items keep their views and DOM nodes. With a Key, views
// follow their key instead of their position. Each view's override context
// carries $index, $first, $last, $even, $odd and $length, and $previous when
// TrackPrevious is set.
type Repeat struct {
	ForOf         *expr.ForOf
	Key           expr.Expression
	TrackPrevious bool
	Factory       ViewFactory
	Location      *dom.Element

	sys    *observation.System
	scope  *scope.Scope
	record *observation.Record
	source any
	items  []any
	views  []*repeatView
	bound  bool
}

type repeatView struct {
	view  View
	scope *scope.Scope
	key   any
}

func NewRepeat(sys *observation.System, forOf *expr.ForOf, factory ViewFactory, location *dom.Element) *Repeat {
	r := &Repeat{
		ForOf:    forOf,
		Factory:  factory,
		Location: location,
		sys:      sys,
	}
	r.record = observation.NewRecord(sys, r)
	return r
}

func (r *Repeat) IsBound() bool {
	return r.bound
}

// Views returns the current views in order.
func (r *Repeat) Views() []View {
	views := make([]View, len(r.views))
	for i, rv := range r.views {
		views[i] = rv.view
	}
	return views
}

func (r *Repeat) Bind(s *scope.Scope) error {
	if r.bound {
		if r.scope == s {
			return nil
		}
		r.Unbind()
	}
	if r.Factory == nil || r.Location == nil || r.ForOf == nil {
		return errors.New("binding: repeat needs a for-of header, a view factory and a location")
	}
	r.scope = s
	r.bound = true
	if err := r.refresh(); err != nil {
		r.Unbind()
		return err
	}
	return nil
}

// Unbind tears down every view and releases the source subscriptions.
func (r *Repeat) Unbind() {
	if !r.bound {
		return
	}
	r.bound = false
	r.record.Clear()
	for _, rv := range r.views {
		r.remove(rv)
	}
	r.views = nil
	r.items = nil
	r.source = nil
	r.scope = nil
}

// HandleChange runs when the iterable expression's dependencies change,
// typically when the collection itself is replaced.
func (r *Repeat) HandleChange(_, _ any) error {
	if !r.bound {
		return nil
	}
	return r.refresh()
}

func (r *Repeat) HandleCollectionChange(m observation.IndexMap, c observation.Collection) error {
	if !r.bound || any(c) != r.source {
		return nil
	}
	items, err := iterate(c)
	if err != nil {
		return err
	}
	if r.Key == nil {
		if reuse, ok := r.fromIndexMap(m, items); ok {
			keys := make([]any, len(items))
			for i, item := range items {
				keys[i] = identityKey(item)
			}
			return r.reconcile(items, reuse, keys)
		}
	}
	reuse, keys, err := r.match(items)
	if err != nil {
		return err
	}
	return r.reconcile(items, reuse, keys)
}

func (r *Repeat) refresh() error {
	r.record.Begin()
	v, err := r.ForOf.Evaluate(r.scope, env(r.sys, r.record))
	if c, ok := v.(observation.Collection); ok && err == nil {
		r.record.ObserveCollection(c)
	}
	if endErr := r.record.End(); err == nil {
		err = endErr
	}
	if err != nil {
		return err
	}
	r.source = v

	items, err := iterate(v)
	if err != nil {
		return err
	}
	reuse, keys, err := r.match(items)
	if err != nil {
		return err
	}
	return r.reconcile(items, reuse, keys)
}

// fromIndexMap turns a delivered IndexMap into per-slot view reuse. It
// refuses maps that do not describe the items the views were built from.
func (r *Repeat) fromIndexMap(m observation.IndexMap, items []any) ([]int, bool) {
	if len(m.Slots) != len(items) {
		return nil, false
	}
	reuse := make([]int, len(items))
	kept := 0
	for i, o := range m.Slots {
		if o == observation.Created {
			reuse[i] = -1
			continue
		}
		if o < 0 || o >= len(r.views) || !reflectx.Same(r.items[o], items[i]) {
			return nil, false
		}
		reuse[i] = o
		kept++
	}
	if kept+len(m.Deleted) != len(r.views) {
		return nil, false
	}
	return reuse, true
}

// match pairs items with existing views by key, first come first served
// among duplicates.
func (r *Repeat) match(items []any) ([]int, []any, error) {
	keys := make([]any, len(items))
	for i, item := range items {
		k, err := r.keyOf(item)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = k
	}
	pool := make(map[any][]int, len(r.views))
	for j, rv := range r.views {
		pool[rv.key] = append(pool[rv.key], j)
	}
	reuse := make([]int, len(items))
	for i, k := range keys {
		reuse[i] = -1
		if q := pool[k]; len(q) > 0 {
			reuse[i] = q[0]
			pool[k] = q[1:]
		}
	}
	return reuse, keys, nil
}

func (r *Repeat) keyOf(item any) (any, error) {
	if r.Key == nil {
		return identityKey(item), nil
	}
	s := scope.FromParent(r.scope, observation.NewObject(r.local(), item))
	k, err := r.Key.Evaluate(s, env(r.sys, nil))
	if err != nil {
		return nil, fmt.Errorf("binding: repeat key: %w", err)
	}
	return identityKey(k), nil
}

type identity struct {
	typ reflect.Type
	id  uintptr
}

// entryKey matches map entries by key, so a row survives its value changing.
type entryKey struct {
	key any
}

// identityKey maps an item to something usable as a map key that is equal
// only for the same item.
func identityKey(item any) any {
	if e, ok := item.(observation.Entry); ok {
		return entryKey{identityKey(e.Key)}
	}
	if reflectx.Comparable(item) {
		return item
	}
	if id, ok := reflectx.Identity(item); ok {
		return identity{reflect.TypeOf(item), id}
	}
	return new(int)
}

func (r *Repeat) local() string {
	if r.ForOf.Declaration == "" {
		return "item"
	}
	return r.ForOf.Declaration
}

// reconcile makes the views match items. reuse[i] is the index of the old
// view to keep for slot i, or -1 for a new one.
func (r *Repeat) reconcile(items []any, reuse []int, keys []any) error {
	old := r.views
	used := make([]bool, len(old))
	for _, j := range reuse {
		if j >= 0 {
			used[j] = true
		}
	}
	for j, rv := range old {
		if !used[j] {
			r.remove(rv)
		}
	}

	r.items = items
	r.views = make([]*repeatView, len(items))
	var errs []error
	for i, item := range items {
		if j := reuse[i]; j >= 0 {
			rv := old[j]
			rv.key = keys[i]
			if bc, ok := rv.scope.BindingContext.(*observation.Object); ok && !reflectx.Same(bc.Get(r.local()), item) {
				if err := bc.Set(r.local(), item); err != nil {
					errs = append(errs, err)
				}
			}
			r.views[i] = rv
			continue
		}
		rv, err := r.create(i, item, keys[i])
		if err != nil {
			errs = append(errs, err)
		}
		r.views[i] = rv
	}
	r.updateContext()
	r.place(reuse)
	return errors.Join(errs...)
}

func (r *Repeat) create(i int, item any, key any) (*repeatView, error) {
	oc := observation.NewObject()
	r.setContext(oc, i)
	s := scope.FromParentWithOverride(r.scope, observation.NewObject(r.local(), item), oc)
	rv := &repeatView{view: r.Factory(), scope: s, key: key}
	return rv, rv.view.Bind(s)
}

func (r *Repeat) remove(rv *repeatView) {
	rv.view.Unbind()
	for _, n := range rv.view.Nodes() {
		if n.Parent() == r.Location {
			r.Location.RemoveChild(n)
		}
	}
}

func (r *Repeat) updateContext() {
	for i, rv := range r.views {
		r.setContext(rv.scope.OverrideContext, i)
	}
}

func (r *Repeat) setContext(oc *observation.Object, i int) {
	n := len(r.items)
	oc.Set("$index", i)
	oc.Set("$first", i == 0)
	oc.Set("$last", i == n-1)
	oc.Set("$even", i%2 == 0)
	oc.Set("$odd", i%2 == 1)
	oc.Set("$length", n)
	if r.TrackPrevious {
		var prev any
		if i > 0 {
			prev = r.items[i-1]
		}
		oc.Set("$previous", prev)
	}
}

// place moves nodes into their new order. Views on a longest increasing run
// of old positions stay where they are; everything else is inserted before
// its successor.
func (r *Repeat) place(reuse []int) {
	keep := longestIncreasing(reuse)
	var ref dom.Node
	for i := len(r.views) - 1; i >= 0; i-- {
		nodes := r.views[i].view.Nodes()
		if !keep[i] {
			for _, n := range nodes {
				r.Location.InsertBefore(n, ref)
			}
		}
		if len(nodes) > 0 {
			ref = nodes[0]
		}
	}
}

// iterate lists the items a repeat renders for v.
func iterate(v any) ([]any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case observation.Collection:
		return v.Items(), nil
	case int:
		items := make([]any, max(v, 0))
		for i := range items {
			items[i] = i
		}
		return items, nil
	case []any:
		return append([]any(nil), v...), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	}
	return nil, fmt.Errorf("binding: cannot repeat over %T", v)
}
