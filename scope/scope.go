// Package scope is the name-resolution chain expressions evaluate against.
package scope

import (
	"github.com/delaneyj/observatory/internal/reflectx"
	"github.com/delaneyj/observatory/observation"
)

// Scope pairs a binding context (usually a view-model) with an override
// context holding scope-local names such as loop variables.
type Scope struct {
	BindingContext  any
	OverrideContext *observation.Object
	Parent          *Scope
	// IsBoundary stops name lookup from walking past a component.
	IsBoundary bool
}

// New creates a root scope. A nil override context is replaced with an
// empty one.
func New(bindingContext any, overrideContext *observation.Object, isBoundary bool) *Scope {
	if overrideContext == nil {
		overrideContext = observation.NewObject()
	}
	return &Scope{
		BindingContext:  bindingContext,
		OverrideContext: overrideContext,
		IsBoundary:      isBoundary,
	}
}

// FromParent creates a child scope with a fresh override context.
func FromParent(parent *Scope, bindingContext any) *Scope {
	return FromParentWithOverride(parent, bindingContext, nil)
}

func FromParentWithOverride(parent *Scope, bindingContext any, overrideContext *observation.Object) *Scope {
	if parent == nil {
		panic("scope: FromParent requires a parent scope")
	}
	s := New(bindingContext, overrideContext, false)
	s.Parent = parent
	return s
}

// Ancestor walks n parents up, returning nil past the root.
func (s *Scope) Ancestor(n int) *Scope {
	cur := s
	for ; n > 0 && cur != nil; n-- {
		cur = cur.Parent
	}
	return cur
}

// Context returns the object name should be read from or written to.
//
// With ancestor > 0 the lookup is pinned to that ancestor scope. Otherwise
// it walks up from s until a scope's override or binding context has name,
// stopping at a component boundary. When nothing has it, the result is s's
// own binding context, so assignments create the name locally.
func (s *Scope) Context(name string, ancestor int) any {
	if ancestor > 0 {
		cur := s.Ancestor(ancestor)
		if cur == nil {
			return nil
		}
		return cur.pick(name)
	}
	cur := s
	for cur != nil && !cur.IsBoundary && !cur.has(name) {
		cur = cur.Parent
	}
	if cur == nil {
		return s.BindingContext
	}
	return cur.pick(name)
}

func (s *Scope) pick(name string) any {
	if s.OverrideContext != nil && s.OverrideContext.Has(name) {
		return s.OverrideContext
	}
	return s.BindingContext
}

func (s *Scope) has(name string) bool {
	if s.OverrideContext != nil && s.OverrideContext.Has(name) {
		return true
	}
	return Has(s.BindingContext, name)
}

// Has reports whether ctx defines name.
func Has(ctx any, name string) bool {
	switch c := ctx.(type) {
	case nil:
		return false
	case *observation.Object:
		return c.Has(name)
	case *observation.Map:
		return c.Has(name)
	}
	return reflectx.Has(ctx, name)
}
