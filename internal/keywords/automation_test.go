package keywords

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/pkg/models"
)

type fakeDeclarationWriter struct {
	upserts []models.Declaration
}

func (f *fakeDeclarationWriter) Upsert(_ context.Context, decl models.Declaration) error {
	f.upserts = append(f.upserts, decl)
	return nil
}

func newAutomationEngine(t *testing.T, decls DeclarationWriter) *expr.Engine {
	t.Helper()
	e := expr.NewEngine()
	sc := SessionContext{BotID: "bot1", SessionID: "s1", ScriptName: "orders.bas"}
	if err := RegisterAutomation(e, sc, decls); err != nil {
		t.Fatalf("register automation verbs: %v", err)
	}
	return e
}

func TestWebhookReturnsConstantWithoutWritingDeclaration(t *testing.T) {
	decls := &fakeDeclarationWriter{}
	e := newAutomationEngine(t, decls)
	got := run(t, e, `WEBHOOK("/hooks/report")`)
	if got != "webhook:/hooks/report" {
		t.Fatalf("expected constant, got %v", got)
	}
	if len(decls.upserts) != 0 {
		t.Fatalf("expected no declaration writes, got %v", decls.upserts)
	}
}

func TestOnWritesTableTriggerDeclaration(t *testing.T) {
	decls := &fakeDeclarationWriter{}
	e := newAutomationEngine(t, decls)
	run(t, e, `ON("insert", "orders")`)
	if len(decls.upserts) != 1 {
		t.Fatalf("expected one declaration write, got %d", len(decls.upserts))
	}
	decl := decls.upserts[0]
	if decl.BotID != "bot1" || decl.Kind != models.KindTableTrigger ||
		decl.TargetOrEndpoint != "orders" || decl.TableEvent != models.EventInsert ||
		decl.ScriptName != "orders.bas" || !decl.IsActive {
		t.Fatalf("unexpected declaration: %+v", decl)
	}
}

func TestOnIsANoOpOnSecondEvaluation(t *testing.T) {
	decls := &fakeDeclarationWriter{}
	e := newAutomationEngine(t, decls)
	run(t, e, `ON("update", "orders")`)
	run(t, e, `ON("update", "orders")`)
	if len(decls.upserts) != 1 {
		t.Fatalf("expected exactly one write across repeated evaluations, got %d", len(decls.upserts))
	}
}

func TestOnRejectsUnknownKind(t *testing.T) {
	e := newAutomationEngine(t, &fakeDeclarationWriter{})
	p, err := e.Compile(`ON("truncate", "orders")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(p); err == nil {
		t.Fatal("expected rejection of an unknown trigger kind")
	}
}

func TestOnWithNilStoreFails(t *testing.T) {
	e := newAutomationEngine(t, nil)
	p, err := e.Compile(`ON("delete", "orders")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(p); err == nil {
		t.Fatal("expected failure with no declaration store configured")
	}
}
