package observation

import "slices"

// Subscriber receives property changes.
type Subscriber interface {
	HandleChange(newValue, oldValue any) error
}

// CollectionSubscriber receives in-place collection mutations.
type CollectionSubscriber interface {
	HandleCollectionChange(m IndexMap, c Collection) error
}

// Observer detects mutation of one property or collection.
type Observer interface {
	Value() any
	Subscribe(s Subscriber)
	Unsubscribe(s Subscriber)
}

// Accessor is an Observer that can also write. Writes through an Accessor
// are guaranteed to notify.
type Accessor interface {
	Observer
	SetValue(v any) error
}

// Subscribers is the subscriber list embedded by every observer. Zero or one
// subscriber costs no allocation; from the second on the list is an ordered
// copy-on-write slice, so Each always walks the snapshot taken when it
// started.
type Subscribers[S comparable] struct {
	one  S
	many []S
	n    int
}

// Subscribe adds s unless already present and reports whether it was added.
func (c *Subscribers[S]) Subscribe(s S) bool {
	if c.Has(s) {
		return false
	}
	switch {
	case c.many != nil:
		next := make([]S, len(c.many), len(c.many)+1)
		copy(next, c.many)
		c.many = append(next, s)
	case c.n == 0:
		c.one = s
	default:
		c.many = []S{c.one, s}
		var zero S
		c.one = zero
	}
	c.n++
	return true
}

// Unsubscribe removes s and reports whether it was present.
func (c *Subscribers[S]) Unsubscribe(s S) bool {
	if c.many != nil {
		i := slices.Index(c.many, s)
		if i < 0 {
			return false
		}
		next := make([]S, 0, len(c.many)-1)
		next = append(next, c.many[:i]...)
		c.many = append(next, c.many[i+1:]...)
		c.n--
		return true
	}
	if c.n == 1 && c.one == s {
		var zero S
		c.one = zero
		c.n = 0
		return true
	}
	return false
}

func (c *Subscribers[S]) Has(s S) bool {
	if c.many != nil {
		return slices.Contains(c.many, s)
	}
	return c.n == 1 && c.one == s
}

func (c *Subscribers[S]) Len() int {
	return c.n
}

func (c *Subscribers[S]) Each(fn func(S)) {
	if c.many != nil {
		for _, s := range c.many {
			fn(s)
		}
		return
	}
	if c.n == 1 {
		fn(c.one)
	}
}

func (c *Subscribers[S]) clear() {
	var zero S
	c.one = zero
	c.many = nil
	c.n = 0
}
