package binding

import (
	"github.com/delaneyj/observatory/dom"
	"github.com/delaneyj/observatory/scope"
)

// View is one materialized template instance.
type View interface {
	// Nodes are the view's top-level nodes, in document order.
	Nodes() []dom.Node
	Bind(s *scope.Scope) error
	Unbind()
}

// ViewFactory creates a fresh, unbound view.
type ViewFactory func() View

// TemplateView is a fragment of nodes plus the bindings targeting them.
type TemplateView struct {
	nodes    []dom.Node
	bindings []Binding
	scope    *scope.Scope
}

func NewTemplateView(nodes []dom.Node, bindings ...Binding) *TemplateView {
	return &TemplateView{nodes: nodes, bindings: bindings}
}

func (v *TemplateView) Nodes() []dom.Node {
	return v.nodes
}

func (v *TemplateView) Scope() *scope.Scope {
	return v.scope
}

// Bind binds every binding; if one fails the ones already bound are
// unbound again.
func (v *TemplateView) Bind(s *scope.Scope) error {
	v.scope = s
	for i, b := range v.bindings {
		if err := b.Bind(s); err != nil {
			for _, done := range v.bindings[:i] {
				done.Unbind()
			}
			v.scope = nil
			return err
		}
	}
	return nil
}

func (v *TemplateView) Unbind() {
	for _, b := range v.bindings {
		b.Unbind()
	}
	v.scope = nil
}
