package keywords

import (
	"context"
	"testing"
	"time"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/store"
)

func newCalendarEngine(t *testing.T) (*expr.Engine, *store.MemTaskStore, *store.MemCalendarStore) {
	t.Helper()
	memory := store.NewMemMemoryStore()
	tasks := store.NewMemTaskStore()
	calendar := store.NewMemCalendarStore()
	e := expr.NewEngine()
	sc := SessionContext{BotID: "bot1", SessionID: "s1", UserID: "u1"}
	if err := RegisterCalendar(e, sc, memory, tasks, calendar); err != nil {
		t.Fatalf("register calendar verbs: %v", err)
	}
	return e, tasks, calendar
}

func TestRememberThenRecallRoundTrips(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	run(t, e, `REMEMBER("favorite_color", "blue", "forever")`)
	got := run(t, e, `RECALL("favorite_color")`)
	if got != "blue" {
		t.Fatalf("expected blue, got %v", got)
	}
}

func TestRecallMissingKeyReturnsNull(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	got := run(t, e, `RECALL("nope")`)
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRememberBareIntegerDurationMeansDays(t *testing.T) {
	got, err := parseMemoryDuration("5", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCreateTaskDerivesHighPriorityForTomorrow(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	got := run(t, e, `CREATE_TASK("ship release", "dana", "tomorrow")`)
	envelope, ok := got.(map[string]any)
	if !ok || envelope["priority"] != "high" {
		t.Fatalf("expected high priority, got %v", got)
	}
}

func TestCreateTaskAutoAssigneePicksLeastLoaded(t *testing.T) {
	e, tasks, _ := newCalendarEngine(t)
	run(t, e, `CREATE_TASK("task a", "dana", "+10 days")`)
	run(t, e, `CREATE_TASK("task b", "sam", "+10 days")`)
	run(t, e, `CREATE_TASK("task c", "sam", "+10 days")`)

	got := run(t, e, `CREATE_TASK("task d", "auto", "+10 days")`)
	envelope := got.(map[string]any)
	if envelope["assignee"] != "dana" {
		t.Fatalf("expected dana (1 open task) over sam (2 open tasks), got %v", envelope["assignee"])
	}
	counts, err := tasks.OpenCountByAssignee(context.Background(), "bot1")
	if err != nil {
		t.Fatalf("open count: %v", err)
	}
	if counts["dana"] != 2 || counts["sam"] != 2 {
		t.Fatalf("expected balanced counts, got %v", counts)
	}
}

func TestAssignSmartWithLoadBalancePicksFewestOpenTasks(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	taskID := run(t, e, `CREATE_TASK("investigate bug", "dana", "+5 days")`).(map[string]any)["id"]
	run(t, e, `CREATE_TASK("unrelated", "sam", "+5 days")`)
	run(t, e, `CREATE_TASK("unrelated2", "sam", "+5 days")`)

	p, err := e.Compile(`ASSIGN_SMART("` + taskID.(string) + `", ["dana", "sam"], true)`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := e.Eval(p)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != "dana" {
		t.Fatalf("expected dana (fewer open tasks), got %v", got)
	}
}

func TestBookRejectsOverlappingEvent(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	run(t, e, `BOOK("standup", "daily sync", "2026-03-05 09:00", 30, "room 1")`)

	p, err := e.Compile(`BOOK("overlap", "x", "2026-03-05 09:15", 30, "room 2")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(p); err == nil {
		t.Fatal("expected conflict error for overlapping booking")
	}
}

func TestCheckAvailabilityExcludesBookedWindow(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	run(t, e, `BOOK("standup", "daily sync", "2026-03-05 09:00", 480, "room 1")`)
	got := run(t, e, `CHECK_AVAILABILITY("2026-03-05", 30)`)
	slots, ok := got.([]any)
	if !ok {
		t.Fatalf("expected a list of slots, got %v", got)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no free slots for a fully booked day, got %v", slots)
	}
}

func TestCheckAvailabilityReturnsFreeSlotOutsideBooking(t *testing.T) {
	e, _, _ := newCalendarEngine(t)
	run(t, e, `BOOK("standup", "daily sync", "2026-03-05 09:00", 60, "room 1")`)
	got := run(t, e, `CHECK_AVAILABILITY("2026-03-05", 30)`)
	slots, ok := got.([]any)
	if !ok || len(slots) == 0 {
		t.Fatalf("expected at least one free slot, got %v", got)
	}
}
