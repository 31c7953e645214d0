// Package expr embeds a dynamic expression evaluator (goja, a JS runtime)
// and exposes the single adapter surface the keyword library and
// automation components compile and run scripts through: register a
// verb, compile a program, evaluate it, and set a variable.
package expr

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Value is the neutral, JSON-like representation verbs exchange with the
// engine: nil, bool, string, float64/int64, []any, or map[string]any.
type Value = any

// Handler implements one verb's side effect. args are already normalized
// to Value via ToGoValue; the handler returns a Value result or an error,
// which RuntimeError-wraps are propagated back into the script as a
// catchable exception rather than a host panic.
type Handler func(ctx *CallContext, args []Value) (Value, error)

// CallContext carries per-call state for a handler. The engine sets only
// Engine; Program and Deadline are left nil, so a handler gets no
// per-evaluation deadline from it.
type CallContext struct {
	Engine   *Engine
	Program  *Program
	Deadline any // *context.Context, defined by the caller; kept as any to avoid import cycles with keywords
}

// Program is a compiled script, wrapping goja's compiled form and the
// source it was compiled from.
type Program struct {
	source   string
	compiled *goja.Program
}

// Engine wraps a single *goja.Runtime. One Engine instance backs one
// in-flight script execution; Engines are not safe for concurrent Eval
// calls from multiple goroutines, matching goja's own single-goroutine
// runtime contract, so cmd/botcore builds a fresh Engine for each
// evaluation rather than sharing one across sessions.
type Engine struct {
	mu      sync.Mutex
	rt      *goja.Runtime
	verbs   map[string]Handler
	onPanic func(verb string, r any) error
}

// NewEngine constructs an Engine with an empty verb table.
func NewEngine() *Engine {
	e := &Engine{
		rt:    goja.New(),
		verbs: make(map[string]Handler),
	}
	e.rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return e
}

// RegisterSyntax registers a verb under name. sideEffecting is recorded
// for callers that want to distinguish pure helpers (INSTR, UPPER, ...)
// from I/O-performing verbs (TALK, SAVE, ...); the engine itself treats
// both uniformly since goja's registered Go functions are already
// variadic, so the "family of fixed-arity patterns" the design notes
// describe for non-variadic embedded engines collapses to this single
// registration per verb (see SPEC_FULL.md §4.1).
func (e *Engine) RegisterSyntax(name string, sideEffecting bool, handler Handler) error {
	if name == "" {
		return fmt.Errorf("expr: verb name is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verbs[name] = handler
	return e.rt.Set(name, e.makeBridge(name, handler))
}

// makeBridge adapts a Handler into a goja-callable Go function, recovering
// panics into a RuntimeError-shaped goja exception so a misbehaving verb
// never brings down the host process.
func (e *Engine) makeBridge(name string, handler Handler) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) (result goja.Value) {
		args := make([]Value, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = ToGoValue(a)
		}
		defer func() {
			if r := recover(); r != nil {
				panic(e.rt.NewGoError(fmt.Errorf("%s: internal error: %v", name, r)))
			}
		}()
		cc := &CallContext{Engine: e}
		v, err := handler(cc, args)
		if err != nil {
			panic(e.rt.NewGoError(err))
		}
		return e.rt.ToValue(ToJSValue(v))
	}
}

// Compile parses source (already preprocessed by C2) into a Program.
func (e *Engine) Compile(source string) (*Program, error) {
	prog, err := goja.Compile("script.bas.js", source, true)
	if err != nil {
		return nil, fmt.Errorf("expr: compile: %w", err)
	}
	return &Program{source: source, compiled: prog}, nil
}

// Eval runs a compiled Program to completion and returns its final
// expression value.
func (e *Engine) Eval(p *Program) (Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.rt.RunProgram(p.compiled)
	if err != nil {
		return nil, fmt.Errorf("expr: eval: %w", err)
	}
	return ToGoValue(v), nil
}

// SetVariable binds name to v in the engine's global scope, used both to
// seed tool-call arguments (C8) and to resume a HEAR-suspended script with
// the next inbound message bound to its pending variable.
func (e *Engine) SetVariable(name string, v Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rt.Set(name, ToJSValue(v))
}

// Variable reads the current value of a global script variable.
func (e *Engine) Variable(name string) Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ToGoValue(e.rt.Get(name))
}
