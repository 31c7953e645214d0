package expr

import (
	"errors"
	"testing"
)

func TestRegisterSyntaxAndEval(t *testing.T) {
	e := NewEngine()
	var gotArgs []Value
	err := e.RegisterSyntax("TALK", true, func(cc *CallContext, args []Value) (Value, error) {
		gotArgs = args
		return nil, nil
	})
	if err != nil {
		t.Fatalf("RegisterSyntax: %v", err)
	}

	prog, err := e.Compile(`TALK("hello", 42)`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := e.Eval(prog); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "hello" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestHandlerErrorPropagatesWithoutPanic(t *testing.T) {
	e := NewEngine()
	_ = e.RegisterSyntax("FAIL", true, func(cc *CallContext, args []Value) (Value, error) {
		return nil, errors.New("boom")
	})
	prog, err := e.Compile(`FAIL()`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := e.Eval(prog); err == nil {
		t.Fatal("expected error from failing verb, got nil")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	e := NewEngine()
	_ = e.RegisterSyntax("PANICKY", true, func(cc *CallContext, args []Value) (Value, error) {
		panic("kaboom")
	})
	prog, err := e.Compile(`PANICKY()`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("engine must not panic the host, got: %v", r)
		}
	}()
	if _, err := e.Eval(prog); err == nil {
		t.Fatal("expected error from panicking verb, got nil")
	}
}

func TestSetAndReadVariable(t *testing.T) {
	e := NewEngine()
	if err := e.SetVariable("n", "m2"); err != nil {
		t.Fatalf("SetVariable: %v", err)
	}
	if got := e.Variable("n"); got != "m2" {
		t.Fatalf("Variable() = %v, want m2", got)
	}
}
