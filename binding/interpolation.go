package binding

import (
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
)

// InterpolationBinding renders "text ${a} more ${b}" into a target. However
// many of its parts change in one cycle, the target is written once, during
// the flush.
type InterpolationBinding struct {
	Parts          []string
	Exprs          []expr.Expression
	Target         any
	TargetProperty string

	sys    *observation.System
	interp *expr.Interpolation
	scope  *scope.Scope
	record *observation.Record
	target target
	bound  bool
	queued bool
}

func NewInterpolationBinding(sys *observation.System, parts []string, exprs []expr.Expression, target any, property string) *InterpolationBinding {
	b := &InterpolationBinding{
		Parts:          parts,
		Exprs:          exprs,
		Target:         target,
		TargetProperty: property,
		sys:            sys,
	}
	b.record = observation.NewRecord(sys, b)
	return b
}

func (b *InterpolationBinding) IsBound() bool {
	return b.bound
}

func (b *InterpolationBinding) Bind(s *scope.Scope) error {
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
	b.interp = &expr.Interpolation{Parts: b.Parts, Exprs: b.Exprs}
	if err := b.update(); err != nil {
		b.record.Clear()
		return err
	}
	b.bound = true
	return nil
}

func (b *InterpolationBinding) Unbind() {
	if !b.bound {
		return
	}
	b.bound = false
	b.record.Clear()
	b.scope = nil
	b.target = nil
}

func (b *InterpolationBinding) HandleChange(_, _ any) error {
	b.schedule()
	return nil
}

func (b *InterpolationBinding) HandleCollectionChange(observation.IndexMap, observation.Collection) error {
	b.schedule()
	return nil
}

func (b *InterpolationBinding) schedule() {
	if !b.bound || b.queued {
		return
	}
	b.queued = true
	b.sys.Queue().Enqueue(b)
}

// Flush implements observation.Task.
func (b *InterpolationBinding) Flush() {
	b.queued = false
	if !b.bound {
		return
	}
	if err := b.update(); err != nil {
		b.sys.Report(b, err)
	}
}

// Discard implements observation.Discarder.
func (b *InterpolationBinding) Discard() {
	b.queued = false
}

func (b *InterpolationBinding) update() error {
	v, err := evaluate(b.sys, b.record, b.scope, b.interp)
	if err != nil {
		return err
	}
	return b.target.SetValue(v)
}
