package keywords

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/internal/expr"
)

type fakeBus struct {
	enqueued []string
	pending  string
}

func (f *fakeBus) Enqueue(ctx context.Context, sessionID, text string) error {
	f.enqueued = append(f.enqueued, text)
	return nil
}

func (f *fakeBus) Suspend(ctx context.Context, sessionID, pendingVar string) error {
	f.pending = pendingVar
	return nil
}

type fakeTrace struct {
	lines []string
}

func (f *fakeTrace) Print(ctx context.Context, botID, sessionID, text string) {
	f.lines = append(f.lines, text)
}

func TestTalkEnqueuesWithoutBlocking(t *testing.T) {
	e := expr.NewEngine()
	bus := &fakeBus{}
	if err := RegisterConversational(e, SessionContext{BotID: "bot1", SessionID: "s1"}, bus, nil); err != nil {
		t.Fatalf("RegisterConversational: %v", err)
	}
	prog, err := e.Compile(`TALK("hello there")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(prog); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(bus.enqueued) != 1 || bus.enqueued[0] != "hello there" {
		t.Fatalf("expected one enqueued message, got %v", bus.enqueued)
	}
}

func TestHearSuspendsAndAbortsWithAwaitingInput(t *testing.T) {
	e := expr.NewEngine()
	bus := &fakeBus{}
	if err := RegisterConversational(e, SessionContext{BotID: "bot1", SessionID: "s1"}, bus, nil); err != nil {
		t.Fatalf("RegisterConversational: %v", err)
	}
	prog, err := e.Compile(`HEAR("name")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = e.Eval(prog)
	if err == nil {
		t.Fatal("expected HEAR to abort evaluation with an error")
	}
	if bus.pending != "name" {
		t.Fatalf("expected session suspended on var 'name', got %q", bus.pending)
	}
}

func TestPrintWritesTrace(t *testing.T) {
	e := expr.NewEngine()
	bus := &fakeBus{}
	trace := &fakeTrace{}
	if err := RegisterConversational(e, SessionContext{BotID: "bot1", SessionID: "s1"}, bus, trace); err != nil {
		t.Fatalf("RegisterConversational: %v", err)
	}
	prog, err := e.Compile(`PRINT("trace line")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(prog); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(trace.lines) != 1 || trace.lines[0] != "trace line" {
		t.Fatalf("expected one trace line, got %v", trace.lines)
	}
}

func TestAskTalksThenHears(t *testing.T) {
	e := expr.NewEngine()
	bus := &fakeBus{}
	if err := RegisterConversational(e, SessionContext{BotID: "bot1", SessionID: "s1"}, bus, nil); err != nil {
		t.Fatalf("RegisterConversational: %v", err)
	}
	prog, err := e.Compile(`ASK("what is your name?", "name")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(prog); err == nil {
		t.Fatal("expected ASK to abort evaluation via HEAR")
	}
	if len(bus.enqueued) != 1 || bus.enqueued[0] != "what is your name?" {
		t.Fatalf("expected TALK enqueued before HEAR, got %v", bus.enqueued)
	}
	if bus.pending != "name" {
		t.Fatalf("expected session suspended on var 'name', got %q", bus.pending)
	}
}
