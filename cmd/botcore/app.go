package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/generalbots/botcore/internal/access"
	"github.com/generalbots/botcore/internal/automation"
	"github.com/generalbots/botcore/internal/config"
	"github.com/generalbots/botcore/internal/declare"
	"github.com/generalbots/botcore/internal/drive"
	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/keywords"
	"github.com/generalbots/botcore/internal/llmclient"
	"github.com/generalbots/botcore/internal/preprocess"
	"github.com/generalbots/botcore/internal/session"
	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

// App bundles every collaborator a running process needs: the C5
// session bus, the C10 persistence backends, the C9 access gate, the C3
// declaration harvester, the C6 per-bot drive monitors, the C7
// scheduler, and the per-bot compiled-script cache the drive monitor's
// ScriptSink fills in. One App instance serves every bot a process is
// configured for (spec.md §1's multi-tenant requirement).
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	bus *session.Bus

	configs store.ConfigStore
	decls   *store.SQLDeclarationStore
	assoc   store.AssociationStore
	memory  store.MemoryStore
	rows    *store.MemRowStore
	tasks   *store.MemTaskStore
	cal     *store.MemCalendarStore

	gate      *access.Gate
	harvester *declare.Harvester
	llm       llmclient.Provider

	driveBackend drive.ObjectStore

	scheduler *automation.Scheduler

	scriptsMu sync.RWMutex
	scripts   map[string]compiledScript // "botID/scriptName" -> latest compile

	monitorsMu sync.Mutex
	monitors   map[string]*drive.Monitor // botID -> monitor
}

type compiledScript struct {
	program *expr.Program
}

// NewApp wires every collaborator from cfg. Stores are SQL-backed when
// cfg.Database.Driver names a real database/sql driver reachable from
// this process; the row, task and calendar stores are always the
// in-memory ones (store.SQLRowStore exists but is not wired here, and
// tasks and calendar events have no SQL-backed store).
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	dialect := dialectFor(cfg.Database.Driver)

	configs, err := store.OpenSQLConfigStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return nil, fmt.Errorf("botcore: open config store: %w", err)
	}
	declStore, err := store.OpenSQLDeclarationStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return nil, fmt.Errorf("botcore: open declaration store: %w", err)
	}
	assocStore, err := store.OpenSQLAssociationStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return nil, fmt.Errorf("botcore: open association store: %w", err)
	}
	memStore, err := store.OpenSQLMemoryStore(ctx, cfg.Database.Driver, cfg.Database.DSN, dialect)
	if err != nil {
		return nil, fmt.Errorf("botcore: open memory store: %w", err)
	}

	var backend drive.ObjectStore
	switch cfg.Drive.Backend {
	case "s3":
		backend, err = drive.NewS3Store(ctx, drive.S3Config{
			Endpoint:        cfg.Drive.Endpoint,
			Region:          cfg.Drive.Region,
			AccessKeyID:     cfg.Drive.AccessKeyID,
			SecretAccessKey: cfg.Drive.SecretAccessKey,
			UsePathStyle:    cfg.Drive.UsePathStyle,
		})
	default:
		backend, err = drive.NewLocalFileStore(cfg.Drive.LocalPath)
	}
	if err != nil {
		return nil, fmt.Errorf("botcore: open drive backend: %w", err)
	}

	llmProvider, err := llmclient.New(llmclient.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("botcore: configure llm provider: %w", err)
	}

	kbIndexer, err := drive.NewChromemIndexer(filepath.Join(cfg.Drive.LocalPath, "kb_index"))
	if err != nil {
		return nil, fmt.Errorf("botcore: open kb indexer: %w", err)
	}
	crawler := drive.NewCrawler(1)

	app := &App{
		cfg:          cfg,
		logger:       logger,
		bus:          session.NewBus(30*time.Minute, logger),
		configs:      configs,
		decls:        declStore,
		assoc:        assocStore,
		memory:       memStore,
		rows:         store.NewMemRowStore(),
		tasks:        store.NewMemTaskStore(),
		cal:          store.NewMemCalendarStore(),
		gate:         access.NewGate(access.NewStaticRules(), logger),
		harvester:    declare.NewHarvester(declStore, declStore, logger),
		llm:          llmProvider,
		driveBackend: backend,
		scripts:      make(map[string]compiledScript),
		monitors:     make(map[string]*drive.Monitor),
	}

	app.scheduler = automation.NewScheduler(automation.SchedulerConfig{
		Bots:     staticBotLister(cfg.Bots),
		Decls:    declStore,
		Executor: app,
		Logger:   logger,
	})

	for _, b := range cfg.Bots {
		app.monitors[b.ID] = drive.NewMonitor(drive.MonitorConfig{
			BotID:      b.ID,
			Bucket:     b.Bucket,
			Store:      backend,
			States:     drive.NewFileStateStore(cfg.Drive.LocalPath),
			Configs:    configs,
			Decls:      app.harvester,
			KB:         kbIndexer,
			Crawler:    crawler,
			Engine:     expr.NewEngine(),
			ConfigSink: app,
			ScriptSink: app,
			Logger:     logger,
		})
	}

	return app, nil
}

func dialectFor(driver string) declare.Dialect {
	switch driver {
	case "postgres":
		return declare.DialectPostgres
	case "sqlite3":
		return declare.DialectSQLite
	default:
		return declare.DialectSQLite
	}
}

// staticBotLister adapts the configured bot list to automation.BotLister.
type staticBotLister []config.BotConfig

func (l staticBotLister) ListBotIDs(context.Context) ([]string, error) {
	ids := make([]string, len(l))
	for i, b := range l {
		ids[i] = b.ID
	}
	return ids, nil
}

// OnScriptCompiled implements drive.ScriptSink: caches the newly
// compiled program so inbound messages and the scheduler can run it by
// name without recompiling on every turn.
func (a *App) OnScriptCompiled(botID, scriptName string, program *expr.Program, _ preprocess.Result) {
	a.scriptsMu.Lock()
	defer a.scriptsMu.Unlock()
	a.scripts[botID+"/"+scriptName] = compiledScript{program: program}
	a.logger.Info("script compiled", "bot_id", botID, "script", scriptName)
}

// OnConfigChanged implements drive.ConfigSink. Theme/provider hot-swap
// is intentionally out of scope; this just logs so an operator can see
// a bot's .gbot/config.csv take effect.
func (a *App) OnConfigChanged(botID, key, value string) {
	a.logger.Info("bot config changed", "bot_id", botID, "key", key, "value", value)
}

// lookupScript returns the most recently compiled program for
// (botID, scriptName).
func (a *App) lookupScript(botID, scriptName string) (*expr.Program, bool) {
	a.scriptsMu.RLock()
	defer a.scriptsMu.RUnlock()
	s, ok := a.scripts[botID+"/"+scriptName]
	return s.program, ok
}

// newEngine builds an expr.Engine with every verb group registered for
// one session's evaluation, implementing the wiring RegisterAll needs.
func (a *App) newEngine(sess *models.UserSession, scriptName string) (*expr.Engine, error) {
	e := expr.NewEngine()
	sc := keywords.SessionContext{
		BotID:      sess.BotID,
		SessionID:  sess.SessionID,
		UserID:     sess.UserID,
		Channel:    sess.Channel,
		ScriptName: scriptName,
	}
	var state keywords.SessionState
	if liveSess, ok := a.bus.Get(sess.SessionID); ok {
		state = liveSess
	}
	deps := keywords.Deps{
		Bus:          a.bus,
		Trace:        a.bus,
		Gate:         a.gate,
		Rows:         a.rows,
		Schemas:      a.decls,
		HTTPClient:   http.DefaultClient,
		Assoc:        a.assoc,
		SessionState: state,
		Files:        a.driveBackend,
		Memory:       a.memory,
		Tasks:        a.tasks,
		Calendar:     a.cal,
		LLM:          a.llm,
		Decls:        a.decls,
	}
	if err := keywords.RegisterAll(e, sc, deps); err != nil {
		return nil, fmt.Errorf("botcore: register verbs: %w", err)
	}
	return e, nil
}

// Execute implements automation.Executor: runs a script for a
// synthesized (scheduler/webhook/table-trigger) session with no human
// counterpart on the other end.
func (a *App) Execute(ctx context.Context, sess *models.UserSession, scriptName string, vars map[string]any) (automation.ExecResult, error) {
	program, ok := a.lookupScript(sess.BotID, scriptName)
	if !ok {
		return automation.ExecResult{}, fmt.Errorf("botcore: script %s/%s not compiled yet", sess.BotID, scriptName)
	}
	e, err := a.newEngine(sess, scriptName)
	if err != nil {
		return automation.ExecResult{}, err
	}
	for k, v := range vars {
		if err := e.SetVariable(k, v); err != nil {
			return automation.ExecResult{}, fmt.Errorf("botcore: bind %s: %w", k, err)
		}
	}
	value, err := e.Eval(program)
	if err != nil {
		return automation.ExecResult{}, fmt.Errorf("botcore: eval %s/%s: %w", sess.BotID, scriptName, err)
	}
	out := ""
	if s, ok := value.(string); ok {
		out = s
	}
	return automation.ExecResult{Output: out, Status: 200}, nil
}

// RunInbound evaluates scriptName for an inbound chat message, creating
// or resuming the session as needed, and returns only the evaluation
// error. Outbound envelopes have already been queued onto the bus by
// TALK; callers drain the session's Outbound channel separately.
func (a *App) RunInbound(ctx context.Context, botID, userID, sessionID, channel, scriptName, text string) error {
	live := a.bus.GetOrCreate(sessionID, userID, botID, channel)
	if live.Awaiting() {
		varName := live.Resume()
		e, err := a.newEngine(&live.UserSession, scriptName)
		if err != nil {
			return err
		}
		if varName != "" {
			if err := e.SetVariable(varName, text); err != nil {
				return err
			}
		}
		program, ok := a.lookupScript(botID, scriptName)
		if !ok {
			return fmt.Errorf("botcore: script %s/%s not compiled yet", botID, scriptName)
		}
		_, err = e.Eval(program)
		return err
	}

	program, ok := a.lookupScript(botID, scriptName)
	if !ok {
		return fmt.Errorf("botcore: script %s/%s not compiled yet", botID, scriptName)
	}
	e, err := a.newEngine(&live.UserSession, scriptName)
	if err != nil {
		return err
	}
	if err := e.SetVariable("input", text); err != nil {
		return err
	}
	_, err = e.Eval(program)
	return err
}

// Monitors returns the configured per-bot drive monitors.
func (a *App) Monitors() map[string]*drive.Monitor {
	a.monitorsMu.Lock()
	defer a.monitorsMu.Unlock()
	out := make(map[string]*drive.Monitor, len(a.monitors))
	for k, v := range a.monitors {
		out[k] = v
	}
	return out
}
