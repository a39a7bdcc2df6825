// Package expr holds the binding expression AST. Expressions are produced
// by a template compiler; this package only evaluates them. Every property
// an evaluation reads is reported to the Watcher in its Env.
package expr

import (
	"fmt"
	"strings"

	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
)

// Env is what an evaluation runs with.
type Env struct {
	// Watcher records reads; nil evaluates untracked.
	Watcher observation.Watcher
	// Locator routes writes to plain Go values through their observers.
	Locator *observation.Locator
	// Strict turns reads and writes through a nil base into
	// InvalidBindingTarget errors instead of nil.
	Strict bool
}

type Expression interface {
	Evaluate(s *scope.Scope, env Env) (any, error)
}

// Assignable expressions can be the source of a from-view binding.
type Assignable interface {
	Expression
	Assign(s *scope.Scope, env Env, v any) error
}

func nilBase(env Env, name string) error {
	if !env.Strict {
		return nil
	}
	return &observation.Error{
		Kind:  observation.InvalidBindingTarget,
		Key:   name,
		Cause: fmt.Errorf("cannot read %q of nil", name),
	}
}

// AccessScope reads a name from the scope chain.
type AccessScope struct {
	Name     string
	Ancestor int
}

func (e *AccessScope) Evaluate(s *scope.Scope, env Env) (any, error) {
	ctx := s.Context(e.Name, e.Ancestor)
	if ctx == nil {
		return nil, nilBase(env, e.Name)
	}
	return observation.Read(env.Watcher, ctx, e.Name), nil
}

func (e *AccessScope) Assign(s *scope.Scope, env Env, v any) error {
	ctx := s.Context(e.Name, e.Ancestor)
	if ctx == nil {
		return &observation.Error{Kind: observation.InvalidBindingTarget, Key: e.Name, Cause: fmt.Errorf("no scope to assign %q in", e.Name)}
	}
	return observation.Assign(env.Locator, ctx, e.Name, v)
}

func (e *AccessScope) String() string {
	return strings.Repeat("$parent.", e.Ancestor) + e.Name
}

// AccessThis is $this (Ancestor 0) or $parent (Ancestor 1 and up).
type AccessThis struct {
	Ancestor int
}

func (e *AccessThis) Evaluate(s *scope.Scope, _ Env) (any, error) {
	if a := s.Ancestor(e.Ancestor); a != nil {
		return a.BindingContext, nil
	}
	return nil, nil
}

// AccessMember reads Object.Name.
type AccessMember struct {
	Object Expression
	Name   string
}

func (e *AccessMember) Evaluate(s *scope.Scope, env Env) (any, error) {
	base, err := e.Object.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, nilBase(env, e.Name)
	}
	return observation.Read(env.Watcher, base, e.Name), nil
}

func (e *AccessMember) Assign(s *scope.Scope, env Env, v any) error {
	base, err := e.Object.Evaluate(s, Env{Locator: env.Locator, Strict: env.Strict})
	if err != nil {
		return err
	}
	return observation.Assign(env.Locator, base, e.Name, v)
}

// AccessKeyed reads Object[Key].
type AccessKeyed struct {
	Object Expression
	Key    Expression
}

func (e *AccessKeyed) Evaluate(s *scope.Scope, env Env) (any, error) {
	base, err := e.Object.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	key, err := e.Key.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, nilBase(env, fmt.Sprint(key))
	}
	if m, ok := base.(*observation.Map); ok {
		v, _ := m.Track(env.Watcher).Get(key)
		return v, nil
	}
	return observation.Read(env.Watcher, base, fmt.Sprint(key)), nil
}

func (e *AccessKeyed) Assign(s *scope.Scope, env Env, v any) error {
	untracked := Env{Locator: env.Locator, Strict: env.Strict}
	base, err := e.Object.Evaluate(s, untracked)
	if err != nil {
		return err
	}
	key, err := e.Key.Evaluate(s, untracked)
	if err != nil {
		return err
	}
	if m, ok := base.(*observation.Map); ok {
		m.Set(key, v)
		return nil
	}
	return observation.Assign(env.Locator, base, fmt.Sprint(key), v)
}

type Literal struct {
	Value any
}

func (e *Literal) Evaluate(*scope.Scope, Env) (any, error) {
	return e.Value, nil
}

// Conditional is Cond ? Yes : No. Only the taken branch is evaluated, so
// only its reads are recorded.
type Conditional struct {
	Cond, Yes, No Expression
}

func (e *Conditional) Evaluate(s *scope.Scope, env Env) (any, error) {
	c, err := e.Cond.Evaluate(s, env)
	if err != nil {
		return nil, err
	}
	if Truthy(c) {
		return e.Yes.Evaluate(s, env)
	}
	return e.No.Evaluate(s, env)
}

// Interpolation joins literal Parts with the string form of Exprs;
// len(Parts) is always len(Exprs)+1.
type Interpolation struct {
	Parts []string
	Exprs []Expression
}

func (e *Interpolation) Evaluate(s *scope.Scope, env Env) (any, error) {
	var sb strings.Builder
	for i, part := range e.Parts {
		sb.WriteString(part)
		if i >= len(e.Exprs) {
			continue
		}
		v, err := e.Exprs[i].Evaluate(s, env)
		if err != nil {
			return nil, err
		}
		sb.WriteString(Stringify(v))
	}
	return sb.String(), nil
}

// ForOf is the "item of items" header of a repeat.
type ForOf struct {
	Declaration string
	Iterable    Expression
}

func (e *ForOf) Evaluate(s *scope.Scope, env Env) (any, error) {
	return e.Iterable.Evaluate(s, env)
}

// Stringify renders a value for text content: nil is empty.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

// Truthy follows template semantics: nil, false, zero numbers and the empty
// string are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}
