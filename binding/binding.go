// Package binding connects expressions evaluated against a scope to DOM
// nodes and view-models, keeping them in sync through the observation
// runtime.
package binding

import (
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
)

// Mode is the direction values flow in.
type Mode uint8

const (
	// OneTime writes the target once at bind and observes nothing.
	OneTime Mode = 1 << iota
	// ToView keeps the target in sync with the source.
	ToView
	// FromView keeps the source in sync with the target.
	FromView
	// TwoWay is ToView and FromView together.
	TwoWay = ToView | FromView
)

func (m Mode) String() string {
	switch m {
	case OneTime:
		return "one-time"
	case ToView, 0:
		return "to-view"
	case FromView:
		return "from-view"
	case TwoWay:
		return "two-way"
	}
	return "unknown"
}

func (m Mode) toView() bool   { return m == 0 || m&(ToView|OneTime) != 0 }
func (m Mode) fromView() bool { return m&FromView != 0 }

// Binding is anything with a bind/unbind lifecycle. Unbind releases every
// subscription Bind created.
type Binding interface {
	Bind(s *scope.Scope) error
	Unbind()
	IsBound() bool
}

func env(sys *observation.System, w observation.Watcher) expr.Env {
	return expr.Env{
		Watcher: w,
		Locator: sys.Locator(),
		Strict:  sys.StrictBinding(),
	}
}

// evaluate runs e with every read recorded in r, dropping dependencies the
// evaluation no longer touched.
func evaluate(sys *observation.System, r *observation.Record, s *scope.Scope, e expr.Expression) (any, error) {
	r.Begin()
	v, err := e.Evaluate(s, env(sys, r))
	if endErr := r.End(); err == nil {
		err = endErr
	}
	return v, err
}
