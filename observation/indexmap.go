package observation

import "slices"

// Created marks an IndexMap slot whose item did not exist before the
// mutation.
const Created = -2

// IndexMap describes a collection mutation. Slots has one entry per item
// after the mutation holding either the item's index before the mutation or
// Created. Deleted lists the pre-mutation indices that are gone, with their
// items in DeletedItems.
type IndexMap struct {
	Slots        []int
	Deleted      []int
	DeletedItems []any
}

func identityIndexMap(n int) *IndexMap {
	m := &IndexMap{Slots: make([]int, n)}
	for i := range m.Slots {
		m.Slots[i] = i
	}
	return m
}

// IsIdentity reports whether the map describes no change at all.
func (m IndexMap) IsIdentity() bool {
	if len(m.Deleted) > 0 {
		return false
	}
	for i, o := range m.Slots {
		if o != i {
			return false
		}
	}
	return true
}

func (m IndexMap) Clone() IndexMap {
	return IndexMap{
		Slots:        slices.Clone(m.Slots),
		Deleted:      slices.Clone(m.Deleted),
		DeletedItems: slices.Clone(m.DeletedItems),
	}
}

// Apply replays the map onto the pre-mutation items, using created(i) for
// every Created slot. It is mostly useful for checking a map against the
// collection it describes.
func (m IndexMap) Apply(before []any, created func(slot int) any) []any {
	after := make([]any, len(m.Slots))
	for i, o := range m.Slots {
		if o == Created {
			after[i] = created(i)
			continue
		}
		after[i] = before[o]
	}
	return after
}

func (m *IndexMap) remove(slot int, item any) {
	if o := m.Slots[slot]; o >= 0 {
		m.Deleted = append(m.Deleted, o)
		m.DeletedItems = append(m.DeletedItems, item)
	}
	m.Slots = slices.Delete(m.Slots, slot, slot+1)
}

func (m *IndexMap) insert(slot, count int) {
	created := make([]int, count)
	for i := range created {
		created[i] = Created
	}
	m.Slots = slices.Insert(m.Slots, slot, created...)
}

func (m *IndexMap) replace(slot int, item any) {
	if o := m.Slots[slot]; o >= 0 {
		m.Deleted = append(m.Deleted, o)
		m.DeletedItems = append(m.DeletedItems, item)
	}
	m.Slots[slot] = Created
}

func (m *IndexMap) permute(perm []int) {
	next := make([]int, len(perm))
	for i, from := range perm {
		next[i] = m.Slots[from]
	}
	m.Slots = next
}
