package observation

import (
	"slices"
	"sort"

	"github.com/delaneyj/observatory/internal/reflectx"
)

// Collection is an observable Array, Map or Set.
type Collection interface {
	Len() int
	// Items returns a snapshot: Array items, Map entries or Set values in
	// order.
	Items() []any
	observer() *CollectionObserver
	attach(o *CollectionObserver)
}

// Array is an observable ordered list. Mutate it only through its methods.
type Array struct {
	items []any
	obs   *CollectionObserver
}

func NewArray(items ...any) *Array {
	return &Array{items: slices.Clone(items)}
}

func (a *Array) observer() *CollectionObserver { return a.obs }
func (a *Array) attach(o *CollectionObserver)  { a.obs = o }
func (a *Array) Len() int                      { return len(a.items) }
func (a *Array) Items() []any                  { return slices.Clone(a.items) }
func (a *Array) Track(w Watcher) *Array        { track(w, a); return a }

// At returns the item at i, or nil when i is out of range.
func (a *Array) At(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

func (a *Array) Push(items ...any) int {
	if len(items) == 0 {
		return len(a.items)
	}
	m := a.obs.begin(len(a.items))
	if m != nil {
		m.insert(len(a.items), len(items))
	}
	a.items = append(a.items, items...)
	a.obs.changed()
	return len(a.items)
}

func (a *Array) Pop() any {
	if len(a.items) == 0 {
		return nil
	}
	last := len(a.items) - 1
	item := a.items[last]
	if m := a.obs.begin(len(a.items)); m != nil {
		m.remove(last, item)
	}
	a.items[last] = nil
	a.items = a.items[:last]
	a.obs.changed()
	return item
}

func (a *Array) Shift() any {
	if len(a.items) == 0 {
		return nil
	}
	item := a.items[0]
	if m := a.obs.begin(len(a.items)); m != nil {
		m.remove(0, item)
	}
	a.items = slices.Delete(a.items, 0, 1)
	a.obs.changed()
	return item
}

func (a *Array) Unshift(items ...any) int {
	if len(items) == 0 {
		return len(a.items)
	}
	if m := a.obs.begin(len(a.items)); m != nil {
		m.insert(0, len(items))
	}
	a.items = slices.Insert(a.items, 0, items...)
	a.obs.changed()
	return len(a.items)
}

// Splice removes deleteCount items at start, inserts items there and returns
// the removed items. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	n := len(a.items)
	if start < 0 {
		start = max(n+start, 0)
	}
	start = min(start, n)
	deleteCount = max(min(deleteCount, n-start), 0)
	if deleteCount == 0 && len(items) == 0 {
		return nil
	}
	removed := slices.Clone(a.items[start : start+deleteCount])
	if m := a.obs.begin(n); m != nil {
		for i := deleteCount - 1; i >= 0; i-- {
			m.remove(start+i, removed[i])
		}
		m.insert(start, len(items))
	}
	a.items = slices.Replace(a.items, start, start+deleteCount, items...)
	a.obs.changed()
	return removed
}

// SetAt replaces the item at i, growing the array with nils when i is past
// the end.
func (a *Array) SetAt(i int, item any) {
	if i < 0 {
		return
	}
	if i < len(a.items) {
		if reflectx.Same(a.items[i], item) {
			return
		}
		if m := a.obs.begin(len(a.items)); m != nil {
			m.replace(i, a.items[i])
		}
		a.items[i] = item
		a.obs.changed()
		return
	}
	grow := i + 1 - len(a.items)
	if m := a.obs.begin(len(a.items)); m != nil {
		m.insert(len(a.items), grow)
	}
	a.items = append(a.items, make([]any, grow)...)
	a.items[i] = item
	a.obs.changed()
}

// Truncate shortens or grows the array to n items.
func (a *Array) Truncate(n int) {
	switch {
	case n < 0 || n == len(a.items):
	case n < len(a.items):
		a.Splice(n, len(a.items)-n)
	default:
		a.Push(make([]any, n-len(a.items))...)
	}
}

// Sort is a stable sort; the observer receives the exact permutation.
func (a *Array) Sort(less func(x, y any) bool) {
	if len(a.items) < 2 {
		return
	}
	perm := make([]int, len(a.items))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return less(a.items[perm[i]], a.items[perm[j]])
	})
	a.applyPermutation(perm)
}

func (a *Array) Reverse() {
	if len(a.items) < 2 {
		return
	}
	perm := make([]int, len(a.items))
	for i := range perm {
		perm[i] = len(perm) - 1 - i
	}
	a.applyPermutation(perm)
}

func (a *Array) applyPermutation(perm []int) {
	moved := false
	for i, from := range perm {
		if i != from {
			moved = true
			break
		}
	}
	if !moved {
		return
	}
	next := make([]any, len(perm))
	for i, from := range perm {
		next[i] = a.items[from]
	}
	if m := a.obs.begin(len(a.items)); m != nil {
		m.permute(perm)
	}
	a.items = next
	a.obs.changed()
}

func (a *Array) Clear() {
	a.Splice(0, len(a.items))
}

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   any
	Value any
}

// Map is an observable insertion-ordered map. Keys must be comparable.
type Map struct {
	keys   []any
	values map[any]any
	obs    *CollectionObserver
}

func NewMap(entries ...Entry) *Map {
	m := &Map{values: map[any]any{}}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

func (m *Map) observer() *CollectionObserver { return m.obs }
func (m *Map) attach(o *CollectionObserver)  { m.obs = o }
func (m *Map) Len() int                      { return len(m.keys) }
func (m *Map) Track(w Watcher) *Map          { track(w, m); return m }
func (m *Map) Keys() []any                   { return slices.Clone(m.keys) }

func (m *Map) Items() []any {
	items := make([]any, len(m.keys))
	for i, k := range m.keys {
		items[i] = Entry{Key: k, Value: m.values[k]}
	}
	return items
}

func (m *Map) Get(key any) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Has(key any) bool {
	_, ok := m.values[key]
	return ok
}

func (m *Map) Set(key, value any) {
	if m.values == nil {
		m.values = map[any]any{}
	}
	old, ok := m.values[key]
	if ok && reflectx.Same(old, value) {
		return
	}
	if ix := m.obs.begin(len(m.keys)); ix != nil {
		if ok {
			ix.replace(slices.Index(m.keys, key), Entry{Key: key, Value: old})
		} else {
			ix.insert(len(m.keys), 1)
		}
	}
	if !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	m.obs.changed()
}

func (m *Map) Delete(key any) bool {
	old, ok := m.values[key]
	if !ok {
		return false
	}
	i := slices.Index(m.keys, key)
	if ix := m.obs.begin(len(m.keys)); ix != nil {
		ix.remove(i, Entry{Key: key, Value: old})
	}
	m.keys = slices.Delete(m.keys, i, i+1)
	delete(m.values, key)
	m.obs.changed()
	return true
}

func (m *Map) Clear() {
	if len(m.keys) == 0 {
		return
	}
	if ix := m.obs.begin(len(m.keys)); ix != nil {
		for i := len(m.keys) - 1; i >= 0; i-- {
			ix.remove(i, Entry{Key: m.keys[i], Value: m.values[m.keys[i]]})
		}
	}
	m.keys = nil
	m.values = map[any]any{}
	m.obs.changed()
}

// Set is an observable insertion-ordered set. Values must be comparable.
type Set struct {
	values []any
	index  map[any]struct{}
	obs    *CollectionObserver
}

func NewSet(values ...any) *Set {
	s := &Set{index: map[any]struct{}{}}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *Set) observer() *CollectionObserver { return s.obs }
func (s *Set) attach(o *CollectionObserver)  { s.obs = o }
func (s *Set) Len() int                      { return len(s.values) }
func (s *Set) Items() []any                  { return slices.Clone(s.values) }
func (s *Set) Track(w Watcher) *Set          { track(w, s); return s }

func (s *Set) Has(v any) bool {
	_, ok := s.index[v]
	return ok
}

func (s *Set) Add(v any) bool {
	if s.Has(v) {
		return false
	}
	if s.index == nil {
		s.index = map[any]struct{}{}
	}
	if ix := s.obs.begin(len(s.values)); ix != nil {
		ix.insert(len(s.values), 1)
	}
	s.values = append(s.values, v)
	s.index[v] = struct{}{}
	s.obs.changed()
	return true
}

func (s *Set) Delete(v any) bool {
	if !s.Has(v) {
		return false
	}
	i := slices.Index(s.values, v)
	if ix := s.obs.begin(len(s.values)); ix != nil {
		ix.remove(i, v)
	}
	s.values = slices.Delete(s.values, i, i+1)
	delete(s.index, v)
	s.obs.changed()
	return true
}

func (s *Set) Clear() {
	if len(s.values) == 0 {
		return
	}
	if ix := s.obs.begin(len(s.values)); ix != nil {
		for i := len(s.values) - 1; i >= 0; i-- {
			ix.remove(i, s.values[i])
		}
	}
	s.values = nil
	s.index = map[any]struct{}{}
	s.obs.changed()
}
