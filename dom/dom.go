// Package dom is a minimal in-memory document: just enough element and
// text nodes for bindings to have real targets.
package dom

import (
	"slices"
	"strings"

	"github.com/valyala/quicktemplate"
)

type Node interface {
	Parent() *Element
	TextContent() string
	setParent(p *Element)
	appendHTML(dst []byte) []byte
}

type Text struct {
	data   string
	parent *Element
}

func NewText(data string) *Text {
	return &Text{data: data}
}

func (t *Text) Data() string         { return t.data }
func (t *Text) SetData(s string)     { t.data = s }
func (t *Text) TextContent() string  { return t.data }
func (t *Text) Parent() *Element     { return t.parent }
func (t *Text) setParent(p *Element) { t.parent = p }
func (t *Text) appendHTML(dst []byte) []byte {
	return appendEscaped(dst, t.data)
}

// Event is dispatched to listeners of Target.
type Event struct {
	Type   string
	Target *Element
}

// Listener is the handle AddEventListener returns.
type Listener struct {
	typ string
	fn  func(Event)
}

// MutationKind says what a Mutation did.
type MutationKind int

const (
	ChildInserted MutationKind = iota + 1
	ChildRemoved
)

// Mutation reports a change to an element's children.
type Mutation struct {
	Kind   MutationKind
	Target *Element
	Node   Node
}

type attr struct {
	name, value string
}

type Element struct {
	tag       string
	attrs     []attr
	props     map[string]any
	children  []Node
	parent    *Element
	listeners map[string][]*Listener

	// OnMutation, when set, is told about every child insertion and
	// removal.
	OnMutation func(Mutation)
}

func NewElement(tag string, attrs ...string) *Element {
	e := &Element{tag: strings.ToLower(tag)}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.SetAttribute(attrs[i], attrs[i+1])
	}
	return e
}

func (e *Element) Tag() string          { return e.tag }
func (e *Element) Parent() *Element     { return e.parent }
func (e *Element) setParent(p *Element) { e.parent = p }

func (e *Element) Attribute(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.name == name {
			return a.value, true
		}
	}
	return "", false
}

func (e *Element) SetAttribute(name, value string) {
	for i, a := range e.attrs {
		if a.name == name {
			e.attrs[i].value = value
			return
		}
	}
	e.attrs = append(e.attrs, attr{name, value})
}

func (e *Element) RemoveAttribute(name string) {
	e.attrs = slices.DeleteFunc(e.attrs, func(a attr) bool { return a.name == name })
}

// Prop reads a DOM property. value and checked fall back to their
// attributes until first set.
func (e *Element) Prop(name string) any {
	if v, ok := e.props[name]; ok {
		return v
	}
	switch name {
	case "value":
		v, _ := e.Attribute("value")
		return v
	case "checked":
		_, ok := e.Attribute("checked")
		return ok
	}
	return nil
}

func (e *Element) SetProp(name string, v any) {
	if e.props == nil {
		e.props = map[string]any{}
	}
	e.props[name] = v
}

func (e *Element) Value() string {
	s, _ := e.Prop("value").(string)
	return s
}

func (e *Element) SetValue(s string) { e.SetProp("value", s) }

func (e *Element) Checked() bool {
	b, _ := e.Prop("checked").(bool)
	return b
}

func (e *Element) SetChecked(b bool) { e.SetProp("checked", b) }

// IsCheckbox reports whether e is an input whose checked state is bound.
func (e *Element) IsCheckbox() bool {
	t, _ := e.Attribute("type")
	return e.tag == "input" && (t == "checkbox" || t == "radio")
}

func (e *Element) Children() []Node {
	return slices.Clone(e.children)
}

func (e *Element) ChildCount() int {
	return len(e.children)
}

func (e *Element) AppendChild(n Node) {
	e.InsertBefore(n, nil)
}

// InsertBefore moves n in front of ref, or to the end when ref is nil. A
// node that already has a parent is detached first.
func (e *Element) InsertBefore(n Node, ref Node) {
	if p := n.Parent(); p != nil {
		p.RemoveChild(n)
	}
	i := len(e.children)
	if ref != nil {
		if j := slices.Index(e.children, ref); j >= 0 {
			i = j
		}
	}
	e.children = slices.Insert(e.children, i, n)
	n.setParent(e)
	e.mutated(ChildInserted, n)
}

func (e *Element) RemoveChild(n Node) bool {
	i := slices.Index(e.children, n)
	if i < 0 {
		return false
	}
	e.children = slices.Delete(e.children, i, i+1)
	n.setParent(nil)
	e.mutated(ChildRemoved, n)
	return true
}

func (e *Element) mutated(kind MutationKind, n Node) {
	if e.OnMutation != nil {
		e.OnMutation(Mutation{Kind: kind, Target: e, Node: n})
	}
}

func (e *Element) TextContent() string {
	var sb strings.Builder
	for _, c := range e.children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// SetTextContent replaces every child with a single text node.
func (e *Element) SetTextContent(s string) {
	for len(e.children) > 0 {
		e.RemoveChild(e.children[len(e.children)-1])
	}
	if s != "" {
		e.AppendChild(NewText(s))
	}
}

func (e *Element) AddEventListener(typ string, fn func(Event)) *Listener {
	if e.listeners == nil {
		e.listeners = map[string][]*Listener{}
	}
	l := &Listener{typ: typ, fn: fn}
	e.listeners[typ] = append(e.listeners[typ], l)
	return l
}

func (e *Element) RemoveEventListener(l *Listener) {
	if l == nil {
		return
	}
	e.listeners[l.typ] = slices.DeleteFunc(e.listeners[l.typ], func(x *Listener) bool { return x == l })
}

// ListenerCount is the number of listeners for typ.
func (e *Element) ListenerCount(typ string) int {
	return len(e.listeners[typ])
}

// Dispatch calls every listener for ev.Type in registration order.
func (e *Element) Dispatch(ev Event) {
	ev.Target = e
	for _, l := range slices.Clone(e.listeners[ev.Type]) {
		l.fn(ev)
	}
}

// OuterHTML serialises e. value and checked properties are written as the
// attributes they would be in a real document.
func (e *Element) OuterHTML() string {
	return string(e.appendHTML(nil))
}

func (e *Element) appendHTML(dst []byte) []byte {
	dst = append(dst, '<')
	dst = append(dst, e.tag...)
	for _, a := range e.attrs {
		if a.name == "value" || a.name == "checked" {
			continue
		}
		dst = appendAttr(dst, a.name, a.value)
	}
	if v := e.Value(); v != "" {
		dst = appendAttr(dst, "value", v)
	}
	if e.Checked() {
		dst = append(dst, " checked"...)
	}
	dst = append(dst, '>')
	if voidElements[e.tag] {
		return dst
	}
	for _, c := range e.children {
		dst = c.appendHTML(dst)
	}
	dst = append(dst, "</"...)
	dst = append(dst, e.tag...)
	return append(dst, '>')
}

func appendAttr(dst []byte, name, value string) []byte {
	dst = append(dst, ' ')
	dst = append(dst, name...)
	dst = append(dst, `="`...)
	dst = appendEscaped(dst, value)
	return append(dst, '"')
}

// appendEscaped appends s HTML-escaped through a pooled quicktemplate writer.
func appendEscaped(dst []byte, s string) []byte {
	bb := quicktemplate.AcquireByteBuffer()
	qw := quicktemplate.AcquireWriter(bb)
	qw.E().S(s)
	dst = append(dst, bb.B...)
	quicktemplate.ReleaseWriter(qw)
	quicktemplate.ReleaseByteBuffer(bb)
	return dst
}

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true, "meta": true, "link": true,
}
