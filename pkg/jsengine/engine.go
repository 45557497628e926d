// Package jsengine runs the JavaScript behind the script verb and the
// script steps of flows, on a goja runtime.
package jsengine

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Engine is a goja runtime with console, json(), output and, once
// BindSimulator is called, sim. Scripts run one at a time; Close may be
// called from another goroutine to stop a running script.
type Engine struct {
	runtime *goja.Runtime
	console io.Writer
	mu      sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithConsole sends console.log and friends to w instead of stdout.
func WithConsole(w io.Writer) Option {
	return func(e *Engine) { e.console = w }
}

// New creates an engine with the built-in globals installed.
func New(opts ...Option) *Engine {
	e := &Engine{runtime: goja.New(), console: os.Stdout}
	for _, opt := range opts {
		opt(e)
	}

	e.installConsole()
	e.runtime.Set("json", e.parseJSON)
	e.runtime.Set("output", e.runtime.NewObject())
	return e
}

func (e *Engine) installConsole() {
	printer := func(prefix string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			var b strings.Builder
			b.WriteString(prefix)
			for i, arg := range call.Arguments {
				if i > 0 || prefix != "" {
					b.WriteByte(' ')
				}
				b.WriteString(consoleString(arg))
			}
			fmt.Fprintln(e.console, b.String())
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", printer(""))
	console.Set("info", printer(""))
	console.Set("warn", printer("WARN:"))
	console.Set("error", printer("ERROR:"))
	e.runtime.Set("console", console)
}

func consoleString(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	return fmt.Sprint(v.Export())
}

// parseJSON implements json(text) with the runtime's own JSON.parse, so the
// result is a plain JS value.
func (e *Engine) parseJSON(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		panic(e.runtime.NewTypeError("json needs a string argument"))
	}
	parse, ok := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
	if !ok {
		panic(e.runtime.NewTypeError("JSON.parse is not available"))
	}
	v, err := parse(goja.Undefined(), e.runtime.ToValue(call.Argument(0).String()))
	if err != nil {
		panic(e.runtime.NewTypeError("invalid JSON: %v", err))
	}
	return v
}

// SetVariable defines a global.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set(name, value)
}

// Declare defines each name that is not yet a global as undefined, so a
// script can test an unset variable without a ReferenceError.
func (e *Engine) Declare(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		if e.runtime.Get(name) == nil {
			e.runtime.Set(name, goja.Undefined())
		}
	}
}

// Output returns a copy of the properties scripts set on the output global.
func (e *Engine) Output() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]interface{})
	v := e.runtime.Get("output")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return out
	}
	obj := v.ToObject(e.runtime)
	for _, key := range obj.Keys() {
		out[key] = obj.Get(key).Export()
	}
	return out
}

// Eval evaluates an expression and returns its exported value.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.runtime.RunString(script)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

// EvalString evaluates an expression and formats the result. null and
// undefined give an empty string.
func (e *Engine) EvalString(script string) (string, error) {
	v, err := e.Eval(script)
	if err != nil || v == nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

// Truthy evaluates a condition. A string result counts as true only when it
// is "true", so a variable holding "false" is false; everything else uses
// JavaScript truthiness.
func (e *Engine) Truthy(script string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.runtime.RunString(script)
	if err != nil {
		return false, err
	}
	if s, ok := v.Export().(string); ok {
		return s == "true", nil
	}
	return v.ToBoolean(), nil
}

// RunScript runs a program. name appears in error locations.
func (e *Engine) RunScript(name, script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.runtime.RunScript(name, script)
	return err
}

// Expand replaces each ${expr} in text with the value of expr. An
// expression that fails, or has no closing brace, is left as written.
// Inserted values are not expanded again.
func (e *Engine) Expand(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, "${")
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])

		end := closingBrace(text, start+2)
		if end < 0 {
			b.WriteString("${")
			text = text[start+2:]
			continue
		}

		if v, err := e.EvalString(text[start+2 : end]); err == nil {
			b.WriteString(v)
		} else {
			b.WriteString(text[start : end+1])
		}
		text = text[end+1:]
	}
}

// closingBrace returns the index of the brace that closes an expression
// starting at from, or -1.
func closingBrace(s string, from int) int {
	depth := 1
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Close interrupts any running script. It is safe to call more than once.
func (e *Engine) Close() {
	e.runtime.Interrupt("engine closed")
}
