package binding_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/observatory/binding"
	"github.com/delaneyj/observatory/dom"
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSystem(t *testing.T, opts ...observation.Option) *observation.System {
	t.Helper()
	opts = append([]observation.Option{
		observation.WithErrorHandler(func(from any, err error) {
			assert.Fail(t, err.Error())
		}),
	}, opts...)
	return observation.NewSystem(opts...)
}

func TestTextRoundTrip(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("message", "hi")
	text := dom.NewText("")

	b := binding.NewPropertyBinding(sys, binding.ToView, expr.Path("message"), text, "")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.Equal(t, "hi", text.Data())
	assert.Equal(t, 1, b.Dependencies())

	require.NoError(t, vm.Set("message", "bye"))
	assert.Equal(t, "hi", text.Data(), "batched until flush")
	sys.Flush()
	assert.Equal(t, "bye", text.Data())

	b.Unbind()
	assert.False(t, b.IsBound())
	assert.Zero(t, b.Dependencies())
	require.NoError(t, vm.Set("message", "gone"))
	sys.Flush()
	assert.Equal(t, "bye", text.Data())
}

func TestBindingFollowsBranches(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("loggedIn", false, "name", "ada", "guest", "guest")
	el := dom.NewElement("span")
	b := binding.NewPropertyBinding(sys, binding.ToView, &expr.Conditional{
		Cond: expr.Path("loggedIn"),
		Yes:  expr.Path("name"),
		No:   expr.Path("guest"),
	}, el, "textContent")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.Equal(t, "guest", el.TextContent())
	assert.Equal(t, 2, b.Dependencies())

	require.NoError(t, vm.Set("loggedIn", true))
	sys.Flush()
	assert.Equal(t, "ada", el.TextContent())
	assert.Equal(t, 2, b.Dependencies(), "guest dropped, name added")

	require.NoError(t, vm.Set("guest", "nobody"))
	sys.Flush()
	assert.Equal(t, "ada", el.TextContent())
}

func TestTwoWayCheckbox(t *testing.T) {
	sys := newSystem(t)
	todo := observation.NewObject("description", "write tests", "completed", false)
	vm := observation.NewObject("todo", todo)
	box := dom.NewElement("input", "type", "checkbox")

	b := binding.NewPropertyBinding(sys, binding.TwoWay, expr.Path("todo.completed"), box, "checked")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.False(t, box.Checked())

	box.SetChecked(true)
	box.Dispatch(dom.Event{Type: "change"})
	assert.Equal(t, true, todo.Get("completed"))
	sys.Flush()
	assert.True(t, box.Checked())

	require.NoError(t, todo.Set("completed", false))
	sys.Flush()
	assert.False(t, box.Checked())

	b.Unbind()
	assert.Zero(t, box.ListenerCount("change"))
	assert.Zero(t, b.Dependencies())
}

func TestValueInputDoesNotEcho(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("name", "ada")
	input := dom.NewElement("input")

	b := binding.NewPropertyBinding(sys, binding.TwoWay, expr.Path("name"), input, "value")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.Equal(t, "ada", input.Value())

	obs, err := sys.Locator().Observer(vm, "name")
	require.NoError(t, err)
	seen := &recorder{}
	obs.Subscribe(seen)

	input.SetValue("grace")
	input.Dispatch(dom.Event{Type: "input"})
	sys.Flush()
	assert.Equal(t, "grace", vm.Get("name"))
	assert.Equal(t, "grace", input.Value())
	assert.Equal(t, []any{"grace"}, seen.values)

	b.Unbind()
	assert.Zero(t, input.ListenerCount("input"))
	assert.Zero(t, input.ListenerCount("change"))
}

type recorder struct {
	values []any
}

func (r *recorder) HandleChange(newValue, _ any) error {
	r.values = append(r.values, newValue)
	return nil
}

func TestFromViewOnly(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("query", "")
	input := dom.NewElement("input", "value", "initial")

	b := binding.NewPropertyBinding(sys, binding.FromView, expr.Path("query"), input, "value")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.Equal(t, "initial", vm.Get("query"), "from-view copies the target at bind")
	assert.Zero(t, b.Dependencies())

	require.NoError(t, vm.Set("query", "ignored"))
	sys.Flush()
	assert.Equal(t, "initial", input.Value())

	input.SetValue("typed")
	input.Dispatch(dom.Event{Type: "change"})
	assert.Equal(t, "typed", vm.Get("query"))
}

func TestFromViewNeedsAssignableSource(t *testing.T) {
	sys := newSystem(t)
	b := binding.NewPropertyBinding(sys, binding.TwoWay, &expr.Literal{Value: 1}, dom.NewElement("input"), "value")
	assert.Error(t, b.Bind(scope.New(observation.NewObject(), nil, false)))
	assert.False(t, b.IsBound())
}

func TestOneTime(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("title", "first")
	el := dom.NewElement("h1")
	b := binding.NewPropertyBinding(sys, binding.OneTime, expr.Path("title"), el, "")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.Equal(t, "first", el.TextContent())
	assert.Zero(t, b.Dependencies())

	require.NoError(t, vm.Set("title", "second"))
	sys.Flush()
	assert.Equal(t, "first", el.TextContent())
}

func TestNilTarget(t *testing.T) {
	sys := newSystem(t)
	b := binding.NewPropertyBinding(sys, binding.ToView, expr.Path("x"), nil, "value")
	err := b.Bind(scope.New(observation.NewObject(), nil, false))
	assert.ErrorIs(t, err, observation.ErrInvalidBindingTarget)
}

func TestStrictBindingSurfacesNilBase(t *testing.T) {
	vm := observation.NewObject("user", nil)
	el := dom.NewElement("span")

	sys := newSystem(t)
	loose := binding.NewPropertyBinding(sys, binding.ToView, expr.Path("user.name"), el, "")
	require.NoError(t, loose.Bind(scope.New(vm, nil, false)))
	assert.Empty(t, el.TextContent())

	strict := binding.NewPropertyBinding(newSystem(t, observation.WithStrictBinding(true)), binding.ToView, expr.Path("user.name"), el, "")
	assert.ErrorIs(t, strict.Bind(scope.New(vm, nil, false)), observation.ErrInvalidBindingTarget)
}

func TestBindingToViewModelProperty(t *testing.T) {
	sys := newSystem(t)
	parent := observation.NewObject("selected", "a")
	child := observation.NewObject("value", nil)

	b := binding.NewPropertyBinding(sys, binding.TwoWay, expr.Path("selected"), child, "value")
	require.NoError(t, b.Bind(scope.New(parent, nil, false)))
	assert.Equal(t, "a", child.Get("value"))

	require.NoError(t, child.Set("value", "b"))
	sys.Flush()
	assert.Equal(t, "b", parent.Get("selected"))

	require.NoError(t, parent.Set("selected", "c"))
	sys.Flush()
	assert.Equal(t, "c", child.Get("value"))
}

func TestBindErrorsAreReported(t *testing.T) {
	var reported []error
	sys := observation.NewSystem(observation.WithErrorHandler(func(_ any, err error) {
		reported = append(reported, err)
	}))
	vm := observation.NewObject()
	require.NoError(t, vm.DefineProperty("v", observation.Descriptor{Value: "x", ReadOnly: true}))
	input := dom.NewElement("input")
	b := binding.NewPropertyBinding(sys, binding.TwoWay, expr.Path("v"), input, "value")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))

	input.SetValue("y")
	input.Dispatch(dom.Event{Type: "input"})
	require.Len(t, reported, 1)
	assert.Equal(t, "x", vm.Get("v"))
}

func TestInterpolationWritesOncePerFlush(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("first", "Ada", "last", "Lovelace")
	el := dom.NewElement("p")

	var writes int
	writer := observation.NewObject()
	require.NoError(t, writer.DefineProperty("text", observation.Descriptor{
		Get: func(observation.Watcher, *observation.Object) any { return el.TextContent() },
		Set: func(_ *observation.Object, v any) error {
			writes++
			el.SetTextContent(v.(string))
			return nil
		},
	}))

	b := binding.NewInterpolationBinding(sys,
		[]string{"Hello ", " ", "!"},
		[]expr.Expression{expr.Path("first"), expr.Path("last")},
		writer, "text")
	require.NoError(t, b.Bind(scope.New(vm, nil, false)))
	assert.Equal(t, "Hello Ada Lovelace!", el.TextContent())
	assert.Equal(t, 1, writes)

	require.NoError(t, vm.Set("first", "Grace"))
	require.NoError(t, vm.Set("last", "Hopper"))
	sys.Flush()
	assert.Equal(t, "Hello Grace Hopper!", el.TextContent())
	assert.Equal(t, 2, writes)

	b.Unbind()
	require.NoError(t, vm.Set("first", "Nobody"))
	sys.Flush()
	assert.Equal(t, 2, writes)
}

type failingBinding struct {
	bound bool
}

func (f *failingBinding) Bind(*scope.Scope) error { return errors.New("boom") }
func (f *failingBinding) Unbind()                 { f.bound = false }
func (f *failingBinding) IsBound() bool           { return f.bound }

func TestTemplateViewRollsBack(t *testing.T) {
	sys := newSystem(t)
	vm := observation.NewObject("a", 1)
	text := dom.NewText("")
	ok := binding.NewPropertyBinding(sys, binding.ToView, expr.Path("a"), text, "")
	v := binding.NewTemplateView([]dom.Node{text}, ok, &failingBinding{})

	assert.Error(t, v.Bind(scope.New(vm, nil, false)))
	assert.False(t, ok.IsBound())
	assert.Zero(t, ok.Dependencies())
	assert.Nil(t, v.Scope())
}
