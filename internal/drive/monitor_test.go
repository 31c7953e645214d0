package drive

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/internal/declare"
	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/preprocess"
	"github.com/generalbots/botcore/pkg/models"
)

type fakeObjectStore struct {
	objects map[string][]byte
	etags   map[string]string
	healthy bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, etags: map[string]string{}, healthy: true}
}

func (f *fakeObjectStore) put(path, etag, content string) {
	f.objects[path] = []byte(content)
	f.etags[path] = etag
}

func (f *fakeObjectStore) List(_ context.Context, _ string) ([]models.DriveObject, error) {
	var out []models.DriveObject
	for p, e := range f.etags {
		out = append(out, models.DriveObject{Path: p, ETag: e, Size: int64(len(f.objects[p]))})
	}
	return out, nil
}

func (f *fakeObjectStore) Get(_ context.Context, _, path string) ([]byte, error) {
	return f.objects[path], nil
}

func (f *fakeObjectStore) HealthCheck(_ context.Context) error {
	if !f.healthy {
		return errUnhealthy
	}
	return nil
}

var errUnhealthy = fakeErr("unhealthy")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

type fakeDeclStore struct{}

func (f *fakeDeclStore) Upsert(context.Context, models.Declaration) error { return nil }
func (f *fakeDeclStore) ListActive(context.Context, string) ([]models.Declaration, error) {
	return nil, nil
}
func (f *fakeDeclStore) Deactivate(context.Context, string, string, []models.Declaration) error {
	return nil
}

type fakeConfigStore struct {
	values map[string]string
}

func (f *fakeConfigStore) Get(_ context.Context, _, key, fallback string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return fallback, nil
}
func (f *fakeConfigStore) Upsert(_ context.Context, _, key, value string) error {
	f.values[key] = value
	return nil
}
func (f *fakeConfigStore) All(context.Context, string) (map[string]string, error) {
	return f.values, nil
}
func (f *fakeConfigStore) SyncGbotConfig(_ context.Context, _, csvText string) (map[string]string, error) {
	changed := map[string]string{}
	for _, line := range splitLines(csvText) {
		parts := splitOnce(line, ',')
		if len(parts) != 2 {
			continue
		}
		if f.values[parts[0]] != parts[1] {
			changed[parts[0]] = parts[1]
			f.values[parts[0]] = parts[1]
		}
	}
	return changed, nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func splitOnce(s string, sep byte) []string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}

type fakeConfigSink struct {
	changes map[string]string
}

func (f *fakeConfigSink) OnConfigChanged(_, key, value string) {
	if f.changes == nil {
		f.changes = map[string]string{}
	}
	f.changes[key] = value
}

type fakeScriptSink struct {
	compiled []string
}

func (f *fakeScriptSink) OnScriptCompiled(_, scriptName string, _ *expr.Program, _ preprocess.Result) {
	f.compiled = append(f.compiled, scriptName)
}

func newTestMonitor(t *testing.T, objStore *fakeObjectStore, cfg *fakeConfigStore, sink *fakeConfigSink) *Monitor {
	t.Helper()
	harvester := declare.NewHarvester(&fakeDeclStore{}, nil, nil)
	return NewMonitor(MonitorConfig{
		BotID:      "bot1",
		Bucket:     "bot1-bucket",
		Store:      objStore,
		States:     NewFileStateStore(t.TempDir()),
		Configs:    cfg,
		Decls:      harvester,
		Engine:     expr.NewEngine(),
		ConfigSink: sink,
		ScriptSink: &fakeScriptSink{},
	})
}

func TestTickSkipsUnchangedETagAcrossRuns(t *testing.T) {
	objStore := newFakeObjectStore()
	objStore.put(".gbot/config.csv", "etag1", "llm-url,http://a\n")
	cfg := &fakeConfigStore{values: map[string]string{}}
	sink := &fakeConfigSink{}
	m := newTestMonitor(t, objStore, cfg, sink)

	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if sink.changes["llm-url"] != "http://a" {
		t.Fatalf("expected llm-url change surfaced, got %v", sink.changes)
	}

	sink.changes = nil
	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(sink.changes) != 0 {
		t.Fatalf("expected no changes on unchanged ETag re-tick, got %v", sink.changes)
	}
}

func TestTickSuspendsAfterConsecutiveFailures(t *testing.T) {
	objStore := newFakeObjectStore()
	objStore.healthy = false
	cfg := &fakeConfigStore{values: map[string]string{}}
	sink := &fakeConfigSink{}
	m := newTestMonitor(t, objStore, cfg, sink)

	for i := 0; i <= maxConsecutiveFailures; i++ {
		_ = m.Tick(context.Background())
	}
	if !m.Suspended() {
		t.Fatal("expected monitor to self-suspend after exceeding failure threshold")
	}
	m.Resume()
	if m.Suspended() {
		t.Fatal("expected Resume to clear suspension")
	}
}

func TestClassifyPartitionsStreams(t *testing.T) {
	cases := map[string]stream{
		"bot1.gbdialog/start.bas": streamScript,
		"bot1.gbot/config.csv":    streamConfig,
		"bot1.gbkb/docs/a.md":     streamKB,
		"bot1.gbdrive/random.txt": streamUnknown,
	}
	for p, want := range cases {
		if got := classify(p); got != want {
			t.Fatalf("classify(%q) = %v, want %v", p, got, want)
		}
	}
}
