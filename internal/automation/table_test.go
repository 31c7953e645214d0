package automation

import (
	"context"
	"testing"
	"time"

	"github.com/generalbots/botcore/pkg/models"
)

func TestTriggerDispatcherFiresMatchingTableTrigger(t *testing.T) {
	decls := newFakeDeclStore()
	decls.add(models.Declaration{
		ID: "d1", BotID: "bot1", Kind: models.KindTableTrigger,
		ScriptName: "on_order_insert", TargetOrEndpoint: "orders",
		TableEvent: models.EventInsert, IsActive: true,
	})
	exec := &fakeExecutor{}
	d := &TriggerDispatcher{Decls: decls, Executor: exec}

	d.Dispatch(context.Background(), "bot1", "orders", models.EventInsert, map[string]any{"id": 1})

	deadline := time.Now().Add(time.Second)
	for exec.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if exec.callCount() != 1 {
		t.Fatalf("expected trigger to fire once, got %d", exec.callCount())
	}
}

func TestTriggerDispatcherIgnoresNonMatchingEvent(t *testing.T) {
	decls := newFakeDeclStore()
	decls.add(models.Declaration{
		ID: "d1", BotID: "bot1", Kind: models.KindTableTrigger,
		ScriptName: "on_order_delete", TargetOrEndpoint: "orders",
		TableEvent: models.EventDelete, IsActive: true,
	})
	exec := &fakeExecutor{}
	d := &TriggerDispatcher{Decls: decls, Executor: exec}

	d.Dispatch(context.Background(), "bot1", "orders", models.EventInsert, nil)

	time.Sleep(50 * time.Millisecond)
	if exec.callCount() != 0 {
		t.Fatalf("expected non-matching event not fired, got %d", exec.callCount())
	}
}
