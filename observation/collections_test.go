package observation_test

import (
	"testing"

	"github.com/delaneyj/observatory/observation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const created = observation.Created

func TestArraySpliceIndexMap(t *testing.T) {
	sys := newSystem(t)
	a := observation.NewArray("a", "b", "c")
	log := observeCollection(sys, a)

	removed := a.Splice(1, 1)
	assert.Equal(t, []any{"b"}, removed)
	sys.Flush()

	require.Len(t, log.maps, 1)
	m := log.maps[0]
	assert.Equal(t, []int{0, 2}, m.Slots)
	assert.Equal(t, []int{1}, m.Deleted)
	assert.Equal(t, []any{"b"}, m.DeletedItems)
	assert.Len(t, m.Slots, a.Len())
}

func TestArrayMutations(t *testing.T) {
	tests := []struct {
		name    string
		items   []any
		mutate  func(a *observation.Array)
		slots   []int
		deleted []int
		after   []any
	}{
		{
			name:   "push",
			items:  []any{"a", "b"},
			mutate: func(a *observation.Array) { a.Push("c") },
			slots:  []int{0, 1, created},
			after:  []any{"a", "b", "c"},
		},
		{
			name:    "pop",
			items:   []any{"a", "b"},
			mutate:  func(a *observation.Array) { a.Pop() },
			slots:   []int{0},
			deleted: []int{1},
			after:   []any{"a"},
		},
		{
			name:    "shift",
			items:   []any{"a", "b"},
			mutate:  func(a *observation.Array) { a.Shift() },
			slots:   []int{1},
			deleted: []int{0},
			after:   []any{"b"},
		},
		{
			name:   "unshift",
			items:  []any{"a"},
			mutate: func(a *observation.Array) { a.Unshift("x", "y") },
			slots:  []int{created, created, 0},
			after:  []any{"x", "y", "a"},
		},
		{
			name:    "splice insert and delete",
			items:   []any{"a", "b", "c", "d"},
			mutate:  func(a *observation.Array) { a.Splice(-3, 2, "x") },
			slots:   []int{0, created, 3},
			deleted: []int{2, 1},
			after:   []any{"a", "x", "d"},
		},
		{
			name:    "set at",
			items:   []any{"a", "b"},
			mutate:  func(a *observation.Array) { a.SetAt(1, "z") },
			slots:   []int{0, created},
			deleted: []int{1},
			after:   []any{"a", "z"},
		},
		{
			name:   "sort",
			items:  []any{3, 1, 2},
			mutate: func(a *observation.Array) { a.Sort(func(x, y any) bool { return x.(int) < y.(int) }) },
			slots:  []int{1, 2, 0},
			after:  []any{1, 2, 3},
		},
		{
			name:   "reverse",
			items:  []any{"a", "b", "c"},
			mutate: func(a *observation.Array) { a.Reverse() },
			slots:  []int{2, 1, 0},
			after:  []any{"c", "b", "a"},
		},
		{
			name:  "push then shift merges",
			items: []any{"a", "b", "c"},
			mutate: func(a *observation.Array) {
				a.Push("d")
				a.Shift()
			},
			slots:   []int{1, 2, created},
			deleted: []int{0},
			after:   []any{"b", "c", "d"},
		},
		{
			name:    "clear",
			items:   []any{"a", "b"},
			mutate:  func(a *observation.Array) { a.Clear() },
			slots:   []int{},
			deleted: []int{1, 0},
			after:   []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newSystem(t)
			a := observation.NewArray(tt.items...)
			log := observeCollection(sys, a)

			tt.mutate(a)
			sys.Flush()

			require.Len(t, log.maps, 1)
			m := log.maps[0]
			assert.Equal(t, tt.slots, m.Slots)
			assert.ElementsMatch(t, tt.deleted, m.Deleted)
			assert.Equal(t, tt.after, a.Items())
			assert.Equal(t, tt.after, m.Apply(tt.items, a.At))
		})
	}
}

func TestArrayWithoutObserverKeepsNoBookkeeping(t *testing.T) {
	sys := newSystem(t)
	a := observation.NewArray(1, 2)
	a.Push(3)
	a.Reverse()
	assert.Equal(t, []any{3, 2, 1}, a.Items())

	obs := sys.Locator().CollectionObserver(a)
	a.Push(4)
	log := observeCollection(sys, a)
	sys.Flush()
	assert.Empty(t, log.maps, "mutations before the first subscriber are not replayed")

	obs.UnsubscribeCollection(log)
	a.Pop()
	sys.Flush()
	assert.Empty(t, log.maps)
	assert.Zero(t, sys.Queue().Len())
}

func TestNoOpMutationsDeliverNothing(t *testing.T) {
	sys := newSystem(t)
	a := observation.NewArray(1, 2, 3)
	log := observeCollection(sys, a)

	a.Sort(func(x, y any) bool { return x.(int) < y.(int) })
	a.SetAt(0, 1)
	a.Splice(1, 0)
	a.Reverse()
	a.Reverse()
	sys.Flush()

	assert.Empty(t, log.maps)
}

func TestSyncCollectionObserver(t *testing.T) {
	sys := newSystem(t)
	a := observation.NewArray("a")
	sys.Locator().CollectionObserver(a).SetFlush(observation.FlushSync)
	log := observeCollection(sys, a)

	a.Push("b")
	a.Push("c")
	require.Len(t, log.maps, 2)
	assert.Equal(t, []int{0, created}, log.maps[0].Slots)
	assert.Equal(t, []int{0, 1, created}, log.maps[1].Slots)
}

func TestMapIndexMap(t *testing.T) {
	sys := newSystem(t)
	m := observation.NewMap(observation.Entry{Key: "a", Value: 1})
	log := observeCollection(sys, m)

	m.Set("b", 2)
	m.Set("a", 3)
	sys.Flush()

	require.Len(t, log.maps, 1)
	assert.Equal(t, []int{created, created}, log.maps[0].Slots)
	assert.Equal(t, []int{0}, log.maps[0].Deleted)
	assert.Equal(t, []any{observation.Entry{Key: "a", Value: 1}}, log.maps[0].DeletedItems)

	assert.True(t, m.Delete("b"))
	assert.False(t, m.Delete("missing"))
	sys.Flush()
	require.Len(t, log.maps, 2)
	assert.Equal(t, []int{0}, log.maps[1].Slots)
	assert.Equal(t, []int{1}, log.maps[1].Deleted)
	assert.Equal(t, []any{"a"}, m.Keys())
}

func TestSetIndexMap(t *testing.T) {
	sys := newSystem(t)
	s := observation.NewSet("a", "b")
	log := observeCollection(sys, s)

	assert.False(t, s.Add("a"))
	assert.True(t, s.Add("c"))
	assert.True(t, s.Delete("a"))
	sys.Flush()

	require.Len(t, log.maps, 1)
	assert.Equal(t, []int{1, created}, log.maps[0].Slots)
	assert.Equal(t, []int{0}, log.maps[0].Deleted)
	assert.Equal(t, []any{"b", "c"}, s.Items())

	s.Clear()
	sys.Flush()
	require.Len(t, log.maps, 2)
	assert.Empty(t, log.maps[1].Slots)
	assert.Len(t, log.maps[1].Deleted, 2)
}

func TestLengthObserver(t *testing.T) {
	sys := newSystem(t)
	a := observation.NewArray(1, 2)
	obs, log := observe(t, sys, a, "length")

	a.Push(3)
	sys.Flush()
	assert.Equal(t, []change{{3, 2}}, log.changes)

	a.SetAt(0, 9)
	sys.Flush()
	assert.Len(t, log.changes, 1, "replacing an item keeps the length")

	acc, ok := obs.(observation.Accessor)
	require.True(t, ok)
	require.NoError(t, acc.SetValue(1))
	sys.Flush()
	assert.Equal(t, []any{9}, a.Items())
	assert.Equal(t, change{1, 3}, log.changes[1])

	assert.Error(t, acc.SetValue("many"))

	obs.Unsubscribe(log)
	a.Push(1)
	sys.Flush()
	assert.Len(t, log.changes, 2)
}

func TestElementObservers(t *testing.T) {
	sys := newSystem(t)

	t.Run("array index", func(t *testing.T) {
		a := observation.NewArray("a", "b")
		_, log := observe(t, sys, a, "0")

		a.SetAt(1, "c")
		sys.Flush()
		assert.Empty(t, log.changes)

		a.Unshift("z")
		sys.Flush()
		assert.Equal(t, []change{{"z", "a"}}, log.changes)

		require.NoError(t, observation.Assign(sys.Locator(), a, "0", "y"))
		sys.Flush()
		assert.Equal(t, change{"y", "z"}, log.changes[1])
	})

	t.Run("map key", func(t *testing.T) {
		m := observation.NewMap()
		_, log := observe(t, sys, m, "k")

		m.Set("other", 1)
		m.Set("k", 2)
		sys.Flush()
		assert.Equal(t, []change{{2, nil}}, log.changes)
	})

	t.Run("size", func(t *testing.T) {
		s := observation.NewSet()
		_, log := observe(t, sys, s, "size")

		s.Add(1)
		s.Add(2)
		sys.Flush()
		assert.Equal(t, []change{{2, 0}}, log.changes)
	})

	t.Run("set keys", func(t *testing.T) {
		_, err := sys.Locator().Observer(observation.NewSet(), "0")
		assert.ErrorIs(t, err, observation.ErrNonObservableProperty)
	})
}

func TestCollectionPlainSubscriber(t *testing.T) {
	sys := newSystem(t)
	a := observation.NewArray()
	obs, log := observe(t, sys, a, observation.CollectionKey)

	a.Push(1)
	a.Push(2)
	sys.Flush()
	require.Len(t, log.changes, 1)
	assert.Same(t, a, log.changes[0].New)

	obs.Unsubscribe(log)
	a.Push(3)
	sys.Flush()
	assert.Len(t, log.changes, 1)
}
