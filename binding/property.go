package binding

import (
	"fmt"

	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
)

// PropertyBinding keeps one target property in sync with an expression.
type PropertyBinding struct {
	Mode           Mode
	Source         expr.Expression
	Target         any
	TargetProperty string

	sys            *observation.System
	scope          *scope.Scope
	record         *observation.Record
	target         target
	stopTarget     func()
	bound          bool
	updatingSource bool
}

func NewPropertyBinding(sys *observation.System, mode Mode, source expr.Expression, target any, property string) *PropertyBinding {
	b := &PropertyBinding{
		Mode:           mode,
		Source:         source,
		Target:         target,
		TargetProperty: property,
		sys:            sys,
	}
	b.record = observation.NewRecord(sys, b)
	return b
}

func (b *PropertyBinding) IsBound() bool {
	return b.bound
}

// Bind resolves the source once against s and starts observing. Binding to
// a different scope while bound rebinds.
func (b *PropertyBinding) Bind(s *scope.Scope) error {
	if b.bound {
		if b.scope == s {
			return nil
		}
		b.Unbind()
	}

	t, err := newTarget(b.sys, b.Target, b.TargetProperty)
	if err != nil {
		return err
	}
	b.target = t
	b.scope = s

	if b.Mode.fromView() {
		if _, ok := b.Source.(expr.Assignable); !ok {
			return fmt.Errorf("binding: %s source %T is not assignable", b.Mode, b.Source)
		}
	}

	switch {
	case b.Mode == OneTime:
		v, err := b.Source.Evaluate(s, env(b.sys, nil))
		if err != nil {
			return err
		}
		if err := t.SetValue(v); err != nil {
			return err
		}
	case b.Mode.toView():
		if err := b.updateTarget(); err != nil {
			b.record.Clear()
			return err
		}
	default:
		if err := b.updateSource(t.Value()); err != nil {
			return err
		}
	}

	if b.Mode.fromView() {
		b.stopTarget = t.watch(b.handleTargetChange)
	}
	b.bound = true
	return nil
}

// Unbind releases every source subscription and target listener.
func (b *PropertyBinding) Unbind() {
	if !b.bound {
		return
	}
	b.bound = false
	b.record.Clear()
	if b.stopTarget != nil {
		b.stopTarget()
		b.stopTarget = nil
	}
	b.scope = nil
	b.target = nil
}

// Dependencies is the number of observers the binding is subscribed to.
func (b *PropertyBinding) Dependencies() int {
	return b.record.Len()
}

func (b *PropertyBinding) HandleChange(_, _ any) error {
	if !b.bound || b.updatingSource {
		return nil
	}
	return b.updateTarget()
}

func (b *PropertyBinding) HandleCollectionChange(observation.IndexMap, observation.Collection) error {
	if !b.bound {
		return nil
	}
	return b.updateTarget()
}

func (b *PropertyBinding) updateTarget() error {
	v, err := evaluate(b.sys, b.record, b.scope, b.Source)
	if err != nil {
		return err
	}
	return b.target.SetValue(v)
}

func (b *PropertyBinding) handleTargetChange(v any) {
	if !b.bound {
		return
	}
	if err := b.updateSource(v); err != nil {
		b.sys.Report(b, err)
	}
}

func (b *PropertyBinding) updateSource(v any) error {
	b.updatingSource = true
	defer func() { b.updatingSource = false }()
	return b.Source.(expr.Assignable).Assign(b.scope, env(b.sys, nil), v)
}
