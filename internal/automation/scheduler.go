package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

// tickResolution is the scheduler's poll period (spec.md §4.7: "a
// single loop ticks at 60-second resolution").
const tickResolution = 60 * time.Second

// fireWindow is how close to "now" a declaration's next computed fire
// time must be for this tick to fire it.
const fireWindow = time.Minute

// cronParser mirrors the teacher's scheduler: seconds-optional so both
// 5- and 6-field expressions parse once normalized.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ExecResult is what running a script for a synthesized session
// produced, used verbatim for scheduled/table-trigger fires and turned
// into an HTTP response for webhook fires.
type ExecResult struct {
	Output  string
	Status  int
	Headers map[string]string
}

// Executor runs a compiled script for a synthesized UserSession. A HEAR
// reached during this run must fail with error-kind InteractionNotAvailable
// (spec.md §4.7) rather than suspending the session, since there is no
// human on the other end of an automation-triggered session.
type Executor interface {
	Execute(ctx context.Context, sess *models.UserSession, scriptName string, vars map[string]any) (ExecResult, error)
}

// BotLister enumerates the bots the scheduler polls declarations for.
type BotLister interface {
	ListBotIDs(ctx context.Context) ([]string, error)
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Bots     BotLister
	Decls    store.DeclarationStore
	Executor Executor
	Logger   *slog.Logger
}

// Scheduler is the 60-second cron tick loop (spec.md §4.7).
type Scheduler struct {
	bots     BotLister
	decls    store.DeclarationStore
	executor Executor
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler builds a Scheduler from cfg.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "automation-scheduler")
	}
	return &Scheduler{bots: cfg.Bots, decls: cfg.Decls, executor: cfg.Executor, logger: logger}
}

// Start begins the tick loop; it returns immediately and runs until ctx
// is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.tickLoop(ctx)
}

// Stop cancels the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	s.tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	botIDs, err := s.bots.ListBotIDs(ctx)
	if err != nil {
		s.logger.Error("automation: list bots failed", "error", err)
		return
	}
	for _, botID := range botIDs {
		decls, err := s.decls.ListActiveByKind(ctx, botID, models.KindScheduled)
		if err != nil {
			s.logger.Error("automation: list scheduled declarations failed", "bot_id", botID, "error", err)
			continue
		}
		for _, decl := range decls {
			s.considerFiring(ctx, decl, now)
		}
	}
}

func (s *Scheduler) considerFiring(ctx context.Context, decl models.Declaration, now time.Time) {
	schedule := decl.Schedule
	if schedule == "" {
		schedule = decl.TargetOrEndpoint
	}
	normalized, err := NormalizeCron(schedule, s.logger)
	if err != nil {
		s.logger.Warn("automation: skipping declaration with unparseable schedule", "bot_id", decl.BotID, "schedule", schedule, "error", err)
		return
	}
	sched, err := cronParser.Parse(normalized)
	if err != nil {
		s.logger.Warn("automation: skipping declaration, cron parse failed", "bot_id", decl.BotID, "schedule", normalized, "error", err)
		return
	}

	next := sched.Next(now)
	if next.Sub(now) > fireWindow {
		return
	}
	if decl.LastTriggered != nil && now.Sub(*decl.LastTriggered) < fireWindow {
		return
	}

	s.fire(ctx, decl, now)
}

func (s *Scheduler) fire(ctx context.Context, decl models.Declaration, now time.Time) {
	sess := &models.UserSession{
		SessionID: fmt.Sprintf("automation:%s:%s", decl.BotID, decl.ScriptName),
		UserID:    decl.BotID,
		BotID:     decl.BotID,
		Channel:   "Automation",
		State:     models.SessionActive,
	}
	if _, err := s.executor.Execute(ctx, sess, decl.ScriptName, nil); err != nil {
		s.logger.Error("automation: scheduled script failed", "bot_id", decl.BotID, "script", decl.ScriptName, "error", err)
	}
	// last_triggered updates regardless of outcome (spec.md §4.7 step 5).
	if err := s.decls.SetLastTriggered(ctx, decl.ID, now); err != nil {
		s.logger.Error("automation: failed to record last_triggered", "bot_id", decl.BotID, "declaration_id", decl.ID, "error", err)
	}
}
