package jsengine

import (
	"context"
	"errors"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/gesture"
	"github.com/devicelab-dev/iossim/pkg/idb"
	"github.com/devicelab-dev/iossim/pkg/ui"
)

// Simulator is the set of actions exposed to scripts as the sim object.
// *action.Driver satisfies it.
type Simulator interface {
	Tap(ctx context.Context, p gesture.Point, duration float64) error
	TapElement(ctx context.Context, label string) (*ui.Element, error)
	Locate(ctx context.Context, label string) (*ui.Element, *ui.Snapshot, error)
	Scroll(ctx context.Context, dir gesture.Direction, distance, speed float64) (gesture.Swipe, error)
	Swipe(ctx context.Context, s gesture.Swipe, opts idb.SwipeOptions) error
	Text(ctx context.Context, text string) error
	Key(ctx context.Context, key string) error
	Button(ctx context.Context, name string) error
	OpenURL(ctx context.Context, url string) error
	Launch(ctx context.Context, bundleID string) (*ui.Snapshot, error)
	Terminate(ctx context.Context, bundleID string) error
	Snapshot(ctx context.Context) (*ui.Snapshot, error)
	Screenshot(ctx context.Context, path string) error
}

// ScrollDefaults fill in sim.scroll arguments a script leaves out.
type ScrollDefaults struct {
	Distance float64
	Speed    float64
}

// BindSimulator installs the global sim object. Every call blocks until the
// action and its UI reporting finish; a failed action throws a JS error.
func (e *Engine) BindSimulator(ctx context.Context, s Simulator, scroll ScrollDefaults) {
	b := &simBinding{ctx: ctx, sim: s, vm: e.runtime, scroll: scroll}

	obj := e.runtime.NewObject()
	obj.Set("tap", b.tap)
	obj.Set("tapElement", b.tapElement)
	obj.Set("find", b.find)
	obj.Set("scroll", b.scrollFn)
	obj.Set("swipe", b.swipe)
	obj.Set("text", b.text)
	obj.Set("key", b.key)
	obj.Set("button", b.button)
	obj.Set("openURL", b.openURL)
	obj.Set("launch", b.launch)
	obj.Set("terminate", b.terminate)
	obj.Set("describe", b.describe)
	obj.Set("screenshot", b.screenshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set("sim", obj)
}

type simBinding struct {
	ctx    context.Context
	sim    Simulator
	vm     *goja.Runtime
	scroll ScrollDefaults
}

func (b *simBinding) throw(err error) {
	panic(b.vm.NewGoError(err))
}

func (b *simBinding) check(err error) {
	if err != nil {
		b.throw(err)
	}
}

// requireArgs throws a TypeError when fewer than n arguments are given.
func (b *simBinding) requireArgs(call goja.FunctionCall, name string, n int) {
	if len(call.Arguments) < n {
		panic(b.vm.NewTypeError("sim.%s requires %d argument(s)", name, n))
	}
}

// floatArg returns argument i as a number, or def when it is absent.
func floatArg(call goja.FunctionCall, i int, def float64) float64 {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return def
	}
	return v.ToFloat()
}

func (b *simBinding) tap(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "tap", 2)
	p := gesture.Point{X: call.Argument(0).ToFloat(), Y: call.Argument(1).ToFloat()}
	b.check(b.sim.Tap(b.ctx, p, floatArg(call, 2, 0)))
	return goja.Undefined()
}

func (b *simBinding) tapElement(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "tapElement", 1)
	elem, err := b.sim.TapElement(b.ctx, call.Argument(0).String())
	b.check(err)
	return b.vm.ToValue(elementObject(elem))
}

func (b *simBinding) find(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "find", 1)
	elem, _, err := b.sim.Locate(b.ctx, call.Argument(0).String())
	if errors.Is(err, core.ErrElementNotFound) {
		return goja.Null()
	}
	b.check(err)
	return b.vm.ToValue(elementObject(elem))
}

func (b *simBinding) scrollFn(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "scroll", 1)
	dir, err := gesture.ParseDirection(call.Argument(0).String())
	if err != nil {
		b.throw(core.ErrInvalidDirection.WithCause(err))
	}
	s, err := b.sim.Scroll(b.ctx, dir, floatArg(call, 1, b.scroll.Distance), floatArg(call, 2, b.scroll.Speed))
	b.check(err)
	return b.vm.ToValue(swipeObject(s))
}

func (b *simBinding) swipe(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "swipe", 4)
	s := gesture.Swipe{
		Start: gesture.Point{X: call.Argument(0).ToFloat(), Y: call.Argument(1).ToFloat()},
		End:   gesture.Point{X: call.Argument(2).ToFloat(), Y: call.Argument(3).ToFloat()},
	}
	b.check(b.sim.Swipe(b.ctx, s, idb.SwipeOptions{Duration: floatArg(call, 4, 0)}))
	return goja.Undefined()
}

func (b *simBinding) text(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "text", 1)
	b.check(b.sim.Text(b.ctx, call.Argument(0).String()))
	return goja.Undefined()
}

func (b *simBinding) key(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "key", 1)
	b.check(b.sim.Key(b.ctx, call.Argument(0).String()))
	return goja.Undefined()
}

func (b *simBinding) button(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "button", 1)
	b.check(b.sim.Button(b.ctx, call.Argument(0).String()))
	return goja.Undefined()
}

func (b *simBinding) openURL(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "openURL", 1)
	b.check(b.sim.OpenURL(b.ctx, call.Argument(0).String()))
	return goja.Undefined()
}

func (b *simBinding) launch(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "launch", 1)
	_, err := b.sim.Launch(b.ctx, call.Argument(0).String())
	b.check(err)
	return goja.Undefined()
}

func (b *simBinding) terminate(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "terminate", 1)
	b.check(b.sim.Terminate(b.ctx, call.Argument(0).String()))
	return goja.Undefined()
}

func (b *simBinding) describe(goja.FunctionCall) goja.Value {
	snap, err := b.sim.Snapshot(b.ctx)
	b.check(err)
	elements := make([]interface{}, len(snap.Elements))
	for i := range snap.Elements {
		elements[i] = elementObject(&snap.Elements[i])
	}
	return b.vm.ToValue(elements)
}

func (b *simBinding) screenshot(call goja.FunctionCall) goja.Value {
	b.requireArgs(call, "screenshot", 1)
	path := call.Argument(0).String()
	b.check(b.sim.Screenshot(b.ctx, path))
	return b.vm.ToValue(path)
}

func elementObject(e *ui.Element) map[string]interface{} {
	c := e.Center()
	return map[string]interface{}{
		"label":   e.Label,
		"title":   e.Title,
		"value":   e.Value,
		"text":    e.Text(),
		"role":    e.Role,
		"type":    e.Type,
		"enabled": e.IsEnabled(),
		"x":       e.Frame.X,
		"y":       e.Frame.Y,
		"width":   e.Frame.Width,
		"height":  e.Frame.Height,
		"centerX": c.X,
		"centerY": c.Y,
	}
}

func swipeObject(s gesture.Swipe) map[string]interface{} {
	return map[string]interface{}{
		"startX": s.Start.X,
		"startY": s.Start.Y,
		"endX":   s.End.X,
		"endY":   s.End.Y,
	}
}
