package binding

import (
	"fmt"

	"github.com/delaneyj/observatory/dom"
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/internal/reflectx"
	"github.com/delaneyj/observatory/observation"
)

// target is the view side of a binding. Writes that would not change the
// target are skipped, which is what keeps two-way bindings from echoing.
type target interface {
	Value() any
	SetValue(v any) error
	// watch reports changes made on the target side until the returned
	// function is called. Targets that cannot change on their own return
	// a no-op.
	watch(fn func(v any)) (stop func())
}

func newTarget(sys *observation.System, t any, property string) (target, error) {
	switch t := t.(type) {
	case nil:
		return nil, &observation.Error{Kind: observation.InvalidBindingTarget, Key: property, Cause: fmt.Errorf("binding has no target")}
	case *dom.Text:
		return textTarget{t}, nil
	case *dom.Element:
		switch property {
		case "value":
			return valueTarget{t}, nil
		case "checked":
			return checkedTarget{t}, nil
		case "textContent", "":
			return textContentTarget{t}, nil
		}
		return propTarget{t, property}, nil
	}
	acc, err := sys.Locator().Accessor(t, property)
	if err != nil {
		return nil, err
	}
	return observerTarget{acc}, nil
}

func noop() {}

type textTarget struct {
	node *dom.Text
}

func (t textTarget) Value() any { return t.node.Data() }

func (t textTarget) SetValue(v any) error {
	if s := expr.Stringify(v); s != t.node.Data() {
		t.node.SetData(s)
	}
	return nil
}

func (textTarget) watch(func(any)) func() { return noop }

type textContentTarget struct {
	el *dom.Element
}

func (t textContentTarget) Value() any { return t.el.TextContent() }

func (t textContentTarget) SetValue(v any) error {
	if s := expr.Stringify(v); s != t.el.TextContent() {
		t.el.SetTextContent(s)
	}
	return nil
}

func (textContentTarget) watch(func(any)) func() { return noop }

// valueTarget is the value of an input, select or textarea.
type valueTarget struct {
	el *dom.Element
}

func (t valueTarget) Value() any { return t.el.Value() }

func (t valueTarget) SetValue(v any) error {
	if s := expr.Stringify(v); s != t.el.Value() {
		t.el.SetValue(s)
	}
	return nil
}

func (t valueTarget) watch(fn func(any)) func() {
	handler := func(dom.Event) { fn(t.el.Value()) }
	input := t.el.AddEventListener("input", handler)
	change := t.el.AddEventListener("change", handler)
	return func() {
		t.el.RemoveEventListener(input)
		t.el.RemoveEventListener(change)
	}
}

type checkedTarget struct {
	el *dom.Element
}

func (t checkedTarget) Value() any { return t.el.Checked() }

func (t checkedTarget) SetValue(v any) error {
	if b := expr.Truthy(v); b != t.el.Checked() {
		t.el.SetChecked(b)
	}
	return nil
}

func (t checkedTarget) watch(fn func(any)) func() {
	l := t.el.AddEventListener("change", func(dom.Event) { fn(t.el.Checked()) })
	return func() { t.el.RemoveEventListener(l) }
}

type propTarget struct {
	el   *dom.Element
	name string
}

func (t propTarget) Value() any { return t.el.Prop(t.name) }

func (t propTarget) SetValue(v any) error {
	if !reflectx.Same(v, t.el.Prop(t.name)) {
		t.el.SetProp(t.name, v)
	}
	return nil
}

func (propTarget) watch(func(any)) func() { return noop }

// observerTarget binds to a view-model property, for example a child
// component's bindable.
type observerTarget struct {
	acc observation.Accessor
}

func (t observerTarget) Value() any { return t.acc.Value() }

func (t observerTarget) SetValue(v any) error {
	if reflectx.Same(v, t.acc.Value()) {
		return nil
	}
	return t.acc.SetValue(v)
}

func (t observerTarget) watch(fn func(any)) func() {
	sub := &targetSubscriber{fn: fn}
	t.acc.Subscribe(sub)
	return func() { t.acc.Unsubscribe(sub) }
}

type targetSubscriber struct {
	fn func(any)
}

func (s *targetSubscriber) HandleChange(newValue, _ any) error {
	s.fn(newValue)
	return nil
}
