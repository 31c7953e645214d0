package keywords

import (
	"context"
	"fmt"

	"github.com/generalbots/botcore/internal/expr"
)

// ResponseBus is the narrow contract the conversational verbs need from
// the session & response bus (C5): enqueueing an outbound message and
// suspending a session on HEAR.
type ResponseBus interface {
	// Enqueue appends a payload to the session's outbound channel. It
	// must not block the caller; the bus is responsible for any actual
	// channel delivery happening asynchronously.
	Enqueue(ctx context.Context, sessionID, text string) error

	// Suspend marks the session as awaiting input bound to pendingVar,
	// per HEAR's "abort the current AST" contract.
	Suspend(ctx context.Context, sessionID, pendingVar string) error
}

// TraceLogger is the narrow contract PRINT writes through.
type TraceLogger interface {
	Print(ctx context.Context, botID, sessionID, text string)
}

// SessionContext identifies the session a registered verb set is bound
// to. One expr.Engine backs one in-flight script execution, so verbs
// are registered per evaluation with the session they're running for
// closed over, rather than threaded through call arguments.
type SessionContext struct {
	BotID     string
	SessionID string

	// UserID identifies the human on the other end of the session, used
	// by REMEMBER/RECALL's (user_id, bot_id, key) memory key (spec.md
	// §4.4). Empty for automation-fired runs with no human counterpart.
	UserID string

	// Channel is "Automation" for a scheduler/webhook/table-trigger
	// synthesized session, any other value for a real chat session.
	// HEAR consults it since there is no human to await input from in
	// an automation-fired run (spec.md §4.7).
	Channel string

	// ScriptName identifies the compiled .bas this session is running,
	// used by ON's runtime table-trigger declaration write (spec.md
	// §4.4) to key it the same way C3's preprocessor-harvested
	// declarations are keyed: (bot_id, kind, target, script_name).
	ScriptName string

	// Roles is the caller's role set, consulted by every data verb
	// through the access-control gate (spec.md §4.4 step 1-2, §4.9).
	Roles []string
}

func contextFrom(cc *expr.CallContext) context.Context {
	if cc == nil || cc.Deadline == nil {
		return context.Background()
	}
	if ctx, ok := cc.Deadline.(*context.Context); ok && ctx != nil {
		return *ctx
	}
	return context.Background()
}

// RegisterConversational wires TALK, HEAR, PRINT, and ASK for one
// session's evaluation, per spec.md §4.4's conversational group.
func RegisterConversational(e *expr.Engine, sc SessionContext, bus ResponseBus, trace TraceLogger) error {
	talk := func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		if len(args) == 0 {
			return nil, NewError(KindInvalidArgument, "TALK requires an expression")
		}
		text := toString(args[0])
		if err := bus.Enqueue(contextFrom(cc), sc.SessionID, text); err != nil {
			return nil, Wrap(KindUpstream, "TALK: enqueue failed", err)
		}
		return nil, nil
	}

	hear := func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		if len(args) != 1 {
			return nil, NewError(KindInvalidArgument, "HEAR requires exactly one variable name")
		}
		if sc.Channel == "Automation" {
			return nil, NewError(KindInteractionNotAvailable, "HEAR is not available in an automation-triggered session")
		}
		varName := toString(args[0])
		if err := bus.Suspend(contextFrom(cc), sc.SessionID, varName); err != nil {
			return nil, Wrap(KindUpstream, "HEAR: suspend failed", err)
		}
		return nil, NewError(KindAwaitingInput, fmt.Sprintf("awaiting input for %s", varName))
	}

	print := func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		if len(args) == 0 {
			return nil, NewError(KindInvalidArgument, "PRINT requires an expression")
		}
		if trace != nil {
			trace.Print(contextFrom(cc), sc.BotID, sc.SessionID, toString(args[0]))
		}
		return nil, nil
	}

	ask := func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		if len(args) != 2 {
			return nil, NewError(KindInvalidArgument, "ASK requires (expr, variable name)")
		}
		if _, err := talk(cc, args[:1]); err != nil {
			return nil, err
		}
		return hear(cc, args[1:])
	}

	for name, h := range map[string]expr.Handler{
		"TALK":  talk,
		"HEAR":  hear,
		"PRINT": print,
		"ASK":   ask,
	} {
		if err := e.RegisterSyntax(name, true, h); err != nil {
			return fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return nil
}
