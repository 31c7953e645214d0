package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/generalbots/botcore/pkg/models"
)

type fakeDeclStore struct {
	mu    sync.Mutex
	decls map[string][]models.Declaration
	last  map[string]time.Time
}

func newFakeDeclStore() *fakeDeclStore {
	return &fakeDeclStore{decls: map[string][]models.Declaration{}, last: map[string]time.Time{}}
}

func (f *fakeDeclStore) add(d models.Declaration) {
	f.decls[d.BotID] = append(f.decls[d.BotID], d)
}

func (f *fakeDeclStore) ListActiveByKind(_ context.Context, botID string, kind models.DeclarationKind) ([]models.Declaration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Declaration
	for _, d := range f.decls[botID] {
		if d.Kind != kind || !d.IsActive {
			continue
		}
		if ts, ok := f.last[d.ID]; ok {
			d.LastTriggered = &ts
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDeclStore) Delete(context.Context, string, models.DeclarationKind, string) error { return nil }

func (f *fakeDeclStore) SetLastTriggered(_ context.Context, id string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[id] = ts
	return nil
}

func (f *fakeDeclStore) Upsert(context.Context, models.Declaration) error { return nil }
func (f *fakeDeclStore) ListActive(context.Context, string) ([]models.Declaration, error) {
	return nil, nil
}
func (f *fakeDeclStore) Deactivate(context.Context, string, string, []models.Declaration) error {
	return nil
}

type fakeBotLister struct{ ids []string }

func (f fakeBotLister) ListBotIDs(context.Context) ([]string, error) { return f.ids, nil }

type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, sess *models.UserSession, scriptName string, _ map[string]any) (ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sess.BotID+"/"+scriptName)
	return ExecResult{Output: "ok"}, f.err
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSchedulerFiresDueDeclarationAndRecordsLastTriggered(t *testing.T) {
	decls := newFakeDeclStore()
	decls.add(models.Declaration{
		ID: "d1", BotID: "bot1", Kind: models.KindScheduled,
		ScriptName: "reminder", Schedule: "* * * * *", IsActive: true,
	})
	exec := &fakeExecutor{}
	sched := NewScheduler(SchedulerConfig{
		Bots:     fakeBotLister{ids: []string{"bot1"}},
		Decls:    decls,
		Executor: exec,
	})

	sched.tick(context.Background(), time.Now())

	if exec.callCount() != 1 {
		t.Fatalf("expected one execution, got %d", exec.callCount())
	}
	if _, ok := decls.last["d1"]; !ok {
		t.Fatal("expected last_triggered recorded regardless of outcome")
	}
}

func TestSchedulerSkipsRecentlyTriggeredDeclaration(t *testing.T) {
	decls := newFakeDeclStore()
	decls.add(models.Declaration{
		ID: "d1", BotID: "bot1", Kind: models.KindScheduled,
		ScriptName: "reminder", Schedule: "* * * * *", IsActive: true,
	})
	now := time.Now()
	decls.last["d1"] = now.Add(-10 * time.Second)

	exec := &fakeExecutor{}
	sched := NewScheduler(SchedulerConfig{
		Bots:     fakeBotLister{ids: []string{"bot1"}},
		Decls:    decls,
		Executor: exec,
	})
	sched.tick(context.Background(), now)

	if exec.callCount() != 0 {
		t.Fatalf("expected no execution within the fire window, got %d", exec.callCount())
	}
}

func TestSchedulerSkipsDisabledDeclaration(t *testing.T) {
	decls := newFakeDeclStore()
	decls.add(models.Declaration{
		ID: "d1", BotID: "bot1", Kind: models.KindScheduled,
		ScriptName: "reminder", Schedule: "* * * * *", IsActive: false,
	})
	exec := &fakeExecutor{}
	sched := NewScheduler(SchedulerConfig{
		Bots:     fakeBotLister{ids: []string{"bot1"}},
		Decls:    decls,
		Executor: exec,
	})
	sched.tick(context.Background(), time.Now())

	if exec.callCount() != 0 {
		t.Fatalf("expected inactive declaration not fired, got %d calls", exec.callCount())
	}
}
