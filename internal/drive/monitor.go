package drive

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/generalbots/botcore/internal/declare"
	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/preprocess"
	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

// maxConsecutiveFailures is the self-suspend threshold spec.md §4.6
// names ("more than 10 consecutive health-check failures suspends the
// monitor until manually resumed").
const maxConsecutiveFailures = 10

// ConfigSink receives bot-config key/value rows harvested from
// .gbot/config.csv, so the monitor doesn't need to know about theme
// broadcast or LLM hot-swap itself.
type ConfigSink interface {
	// OnConfigChanged is called once per changed key, after the row has
	// already been persisted to the config store.
	OnConfigChanged(botID, key, value string)
}

// ScriptSink receives a successfully compiled script.
type ScriptSink interface {
	OnScriptCompiled(botID, scriptName string, program *expr.Program, result preprocess.Result)
}

// Monitor is one per-bot drive-watch instance: it lists the bot's
// bucket, partitions entries into the scripts/config/KB streams
// (spec.md §4.6), and dispatches each changed entry to the matching
// handler, tracking ETags to skip unchanged files across restarts.
type Monitor struct {
	botID      string
	bucket     string
	store      ObjectStore
	states     *FileStateStore
	configs    store.ConfigStore
	decls      *declare.Harvester
	kb         KBIndexer
	crawler    *Crawler
	engine     *expr.Engine
	configSink ConfigSink
	scriptSink ScriptSink
	logger     *slog.Logger

	mu                  sync.Mutex
	consecutiveFailures int
	suspended           bool
	backoff             time.Duration
}

// MonitorConfig bundles a Monitor's collaborators.
type MonitorConfig struct {
	BotID      string
	Bucket     string
	Store      ObjectStore
	States     *FileStateStore
	Configs    store.ConfigStore
	Decls      *declare.Harvester
	KB         KBIndexer
	Crawler    *Crawler
	Engine     *expr.Engine
	ConfigSink ConfigSink
	ScriptSink ScriptSink
	Logger     *slog.Logger
}

// NewMonitor builds a Monitor from cfg.
func NewMonitor(cfg MonitorConfig) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		botID:      cfg.BotID,
		bucket:     cfg.Bucket,
		store:      cfg.Store,
		states:     cfg.States,
		configs:    cfg.Configs,
		decls:      cfg.Decls,
		kb:         cfg.KB,
		crawler:    cfg.Crawler,
		engine:     cfg.Engine,
		configSink: cfg.ConfigSink,
		scriptSink: cfg.ScriptSink,
		logger:     logger,
		backoff:    time.Second,
	}
}

// Suspended reports whether the monitor tripped its failure threshold.
func (m *Monitor) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// Resume clears a self-suspend, for manual operator intervention.
func (m *Monitor) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = false
	m.consecutiveFailures = 0
	m.backoff = time.Second
}

// stream classifies a listed object path into one of the three drive
// streams spec.md §4.6 describes.
type stream int

const (
	streamUnknown stream = iota
	streamScript
	streamConfig
	streamKB
)

func classify(p string) stream {
	switch {
	case strings.Contains(p, ".gbdialog/") && strings.HasSuffix(p, ".bas"):
		return streamScript
	case strings.Contains(p, ".gbot/") && path.Base(p) == "config.csv":
		return streamConfig
	case strings.Contains(p, ".gbkb/"):
		return streamKB
	default:
		return streamUnknown
	}
}

// Tick runs one poll cycle: health-check, list, load the persisted file
// states, partition, and dispatch changed entries. A health-check or
// list failure bumps the failure counter and doubles the backoff, then
// returns the error; callers read Backoff to delay the next tick.
func (m *Monitor) Tick(ctx context.Context) error {
	if m.Suspended() {
		return fmt.Errorf("drive: monitor for %s is suspended", m.botID)
	}
	if err := m.store.HealthCheck(ctx); err != nil {
		m.recordFailure()
		return fmt.Errorf("drive: health check failed for %s: %w", m.botID, err)
	}
	m.recordSuccess()

	objs, err := m.store.List(ctx, m.bucket)
	if err != nil {
		m.recordFailure()
		return fmt.Errorf("drive: list failed for %s: %w", m.botID, err)
	}
	if _, err := m.states.Load(m.botID); err != nil {
		return fmt.Errorf("drive: load file states for %s: %w", m.botID, err)
	}

	var kbDocs []KBIndexDoc
	for _, obj := range objs {
		if !m.states.Changed(m.botID, obj.Path, obj.ETag) {
			continue
		}
		switch classify(obj.Path) {
		case streamScript:
			m.handleScript(ctx, obj)
		case streamConfig:
			m.handleConfig(ctx, obj)
		case streamKB:
			if doc, ok := m.handleKBFile(ctx, obj); ok {
				kbDocs = append(kbDocs, doc)
			}
		default:
			continue
		}
		m.states.Record(m.botID, obj.Path, obj.ETag)
	}

	if len(kbDocs) > 0 && m.kb != nil {
		m.flushKB(ctx, kbDocs)
	}
	return nil
}

func (m *Monitor) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures++
	m.backoff *= 2
	if m.backoff > time.Minute {
		m.backoff = time.Minute
	}
	if m.consecutiveFailures > maxConsecutiveFailures {
		m.suspended = true
		m.logger.Warn("drive monitor self-suspended", "bot_id", m.botID, "failures", m.consecutiveFailures)
	}
}

func (m *Monitor) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures = 0
	m.backoff = time.Second
}

// Backoff returns the current retry delay after consecutive failures.
func (m *Monitor) Backoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoff
}

func (m *Monitor) handleScript(ctx context.Context, obj models.DriveObject) {
	data, err := m.store.Get(ctx, m.bucket, obj.Path)
	if err != nil {
		m.logger.Error("drive: fetch script failed", "bot_id", m.botID, "path", obj.Path, "error", err)
		return
	}
	scriptName := strings.TrimSuffix(path.Base(obj.Path), ".bas")
	result, err := preprocess.Preprocess(m.botID, scriptName, string(data))
	if err != nil {
		m.logger.Error("drive: preprocess failed", "bot_id", m.botID, "script", scriptName, "error", err)
		return
	}
	if m.decls != nil {
		if _, err := m.decls.Ingest(ctx, m.botID, scriptName, declare.DialectPostgres, result); err != nil {
			m.logger.Error("drive: declaration harvest failed", "bot_id", m.botID, "script", scriptName, "error", err)
		}
	}
	program, err := m.engine.Compile(result.Source)
	if err != nil {
		m.logger.Error("drive: compile failed", "bot_id", m.botID, "script", scriptName, "error", err)
		return
	}
	if m.scriptSink != nil {
		m.scriptSink.OnScriptCompiled(m.botID, scriptName, program, result)
	}
}

func (m *Monitor) handleConfig(ctx context.Context, obj models.DriveObject) {
	data, err := m.store.Get(ctx, m.bucket, obj.Path)
	if err != nil {
		m.logger.Error("drive: fetch config failed", "bot_id", m.botID, "path", obj.Path, "error", err)
		return
	}
	changed, err := m.configs.SyncGbotConfig(ctx, m.botID, string(data))
	if err != nil {
		m.logger.Error("drive: config sync failed", "bot_id", m.botID, "error", err)
		return
	}
	if m.configSink == nil {
		return
	}
	for key, value := range changed {
		m.configSink.OnConfigChanged(m.botID, key, value)
	}
}

func (m *Monitor) handleKBFile(ctx context.Context, obj models.DriveObject) (KBIndexDoc, bool) {
	data, err := m.store.Get(ctx, m.bucket, obj.Path)
	if err != nil {
		m.logger.Error("drive: fetch kb file failed", "bot_id", m.botID, "path", obj.Path, "error", err)
		return KBIndexDoc{}, false
	}
	parts := strings.SplitN(obj.Path, ".gbkb/", 2)
	kbName := "default"
	if len(parts) == 2 {
		kbName = strings.SplitN(parts[1], "/", 2)[0]
	}
	return KBIndexDoc{
		ID:      obj.Path,
		Content: string(data),
		Meta:    map[string]string{"bot_id": m.botID, "kb": kbName, "path": obj.Path},
	}, true
}

func (m *Monitor) flushKB(ctx context.Context, docs []KBIndexDoc) {
	byKB := make(map[string][]KBIndexDoc)
	for _, d := range docs {
		byKB[d.Meta["kb"]] = append(byKB[d.Meta["kb"]], d)
	}
	for kb, kdocs := range byKB {
		kbKey := m.botID + "/" + kb
		if !m.kb.TryLock(kbKey) {
			m.logger.Warn("drive: kb index already in flight, skipping", "bot_id", m.botID, "kb", kb)
			continue
		}
		collection := m.botID + "_" + kb
		err := m.kb.Index(ctx, collection, kdocs)
		m.kb.Unlock(kbKey)
		if err != nil {
			m.logger.Error("drive: kb index failed", "bot_id", m.botID, "kb", kb, "error", err)
		}
	}
}

// RunWebsiteCrawl executes a WebsiteCrawl declaration, indexing its
// pages into the bot's KB under the "website" collection suffix. Tick
// does not call it, and the automation scheduler does not dispatch
// WebsiteCrawl declarations to it; nothing in this module invokes it.
func (m *Monitor) RunWebsiteCrawl(ctx context.Context, decl models.Declaration) error {
	if m.crawler == nil {
		return fmt.Errorf("drive: no crawler configured for %s", m.botID)
	}
	if !m.crawler.ShouldCrawl(decl.TargetOrEndpoint, time.Now()) {
		return nil
	}
	pages, err := m.crawler.Crawl(ctx, decl.TargetOrEndpoint, decl.Depth, decl.MaxPages)
	if err != nil {
		return fmt.Errorf("drive: crawl %s: %w", decl.TargetOrEndpoint, err)
	}
	docs := make([]KBIndexDoc, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, KBIndexDoc{
			ID:      p.URL,
			Content: p.Text,
			Meta:    map[string]string{"bot_id": m.botID, "kb": "website", "title": p.Title, "url": p.URL},
		})
	}
	if m.kb == nil || len(docs) == 0 {
		return nil
	}
	kbKey := m.botID + "/website"
	if !m.kb.TryLock(kbKey) {
		return fmt.Errorf("drive: website index already in flight for %s", m.botID)
	}
	defer m.kb.Unlock(kbKey)
	return m.kb.Index(ctx, m.botID+"_website", docs)
}
