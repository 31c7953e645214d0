package keywords

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/pkg/models"
)

// automationTimeout matches the 60s data/HTTP default; writing one
// declaration row is not a heavier call than any other data verb.
const automationTimeout = 60 * time.Second

// DeclarationWriter is the narrow slice of store.DeclarationStore the
// ON verb needs: persisting the table-trigger row its first evaluation
// produces. Mirrors internal/declare.DeclarationStore.Upsert.
type DeclarationWriter interface {
	Upsert(ctx context.Context, decl models.Declaration) error
}

// RegisterAutomation wires ON and WEBHOOK for one session's evaluation
// (spec.md §4.4's "Automation declarations at runtime"). decls may be
// nil, in which case ON still validates its arguments but fails rather
// than silently dropping the declaration write.
func RegisterAutomation(e *expr.Engine, sc SessionContext, decls DeclarationWriter) error {
	a := &automationVerbs{sc: sc, decls: decls}
	if err := e.RegisterSyntax("ON", true, a.on); err != nil {
		return Wrap(KindInternal, "registering ON", err)
	}
	if err := e.RegisterSyntax("WEBHOOK", false, a.webhook); err != nil {
		return Wrap(KindInternal, "registering WEBHOOK", err)
	}
	return nil
}

type automationVerbs struct {
	sc    SessionContext
	decls DeclarationWriter

	mu      sync.Mutex
	written map[string]bool
}

var tableTriggerEvents = map[string]models.TableTriggerEvent{
	"insert": models.EventInsert,
	"update": models.EventUpdate,
	"delete": models.EventDelete,
}

// on implements ON kind OF "table": the compile-time preprocessor
// leaves this as a genuine runtime call (unlike SET SCHEDULE/WEBHOOK,
// which are fully harvested at compile time), so its side effect — an
// upserted TableTrigger declaration — happens the first time the
// script actually runs this line, not when it's merely compiled.
// Re-evaluating the same (kind, table) is a no-op after the first
// write in this engine's lifetime; the store's own upsert-on-conflict
// semantics make repeat writes across process restarts harmless too.
func (a *automationVerbs) on(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, `ON requires (kind, table)`)
	}
	kindStr := strings.ToLower(toString(args[0]))
	table := toString(args[1])
	event, ok := tableTriggerEvents[kindStr]
	if !ok {
		return nil, NewError(KindInvalidArgument, `ON kind must be one of insert, update, delete`)
	}
	if table == "" {
		return nil, NewError(KindInvalidArgument, "ON table name must not be empty")
	}

	if a.decls == nil {
		return nil, NewError(KindInvalidArgument, "ON: no declaration store configured")
	}

	key := kindStr + "|" + table
	a.mu.Lock()
	if a.written == nil {
		a.written = map[string]bool{}
	}
	done := a.written[key]
	a.mu.Unlock()
	if done {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(contextFrom(cc), automationTimeout)
	defer cancel()
	decl := models.Declaration{
		BotID:            a.sc.BotID,
		Kind:             models.KindTableTrigger,
		ScriptName:       a.sc.ScriptName,
		TargetOrEndpoint: table,
		TableEvent:       event,
		IsActive:         true,
	}
	if err := a.decls.Upsert(ctx, decl); err != nil {
		return nil, Wrap(KindUpstream, "ON: writing table trigger failed", err)
	}
	a.mu.Lock()
	a.written[key] = true
	a.mu.Unlock()
	return nil, nil
}

// webhook returns the constant spec.md §4.4 describes: the actual
// registration already happened during preprocessing (declarations.go's
// webhookRe harvest), so the runtime call is side-effect-free.
func (a *automationVerbs) webhook(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, `WEBHOOK requires (endpoint)`)
	}
	return "webhook:" + toString(args[0]), nil
}
