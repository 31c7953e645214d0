package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

// TriggerDispatcher fires TableTrigger declarations after a committed
// data-verb write. Dispatch is best-effort and must never block the
// originating data verb (spec.md §4.7): it spawns the lookup and
// execution in a goroutine and only logs failures.
type TriggerDispatcher struct {
	Decls    store.DeclarationStore
	Executor Executor
	Logger   *slog.Logger
}

// Dispatch enqueues the trigger check for (botID, table, event) in the
// background. row is bound to the synthesized session's "row" variable.
func (d *TriggerDispatcher) Dispatch(ctx context.Context, botID, table string, event models.TableTriggerEvent, row map[string]any) {
	go d.run(ctx, botID, table, event, row)
}

func (d *TriggerDispatcher) run(ctx context.Context, botID, table string, event models.TableTriggerEvent, row map[string]any) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	decls, err := d.Decls.ListActiveByKind(ctx, botID, models.KindTableTrigger)
	if err != nil {
		logger.Error("automation: list table triggers failed", "bot_id", botID, "table", table, "error", err)
		return
	}
	for _, decl := range decls {
		if decl.TargetOrEndpoint != table || decl.TableEvent != event {
			continue
		}
		sess := &models.UserSession{
			SessionID: fmt.Sprintf("trigger:%s:%s:%s", botID, table, decl.ScriptName),
			UserID:    botID,
			BotID:     botID,
			Channel:   "Automation",
			State:     models.SessionActive,
		}
		if _, err := d.Executor.Execute(ctx, sess, decl.ScriptName, map[string]any{"row": row, "event": string(event)}); err != nil {
			logger.Error("automation: table trigger execution failed", "bot_id", botID, "table", table, "script", decl.ScriptName, "error", err)
		}
	}
}
