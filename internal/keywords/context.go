package keywords

import (
	"context"
	"fmt"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/store"
)

// AssociationStore is the narrow contract the Context verbs need from
// C10's session<->resource soft-link store (tool/KB/website
// associations all share this shape per spec.md §4.10).
type AssociationStore interface {
	UpsertActivate(ctx context.Context, kind store.AssociationKind, a store.Association) error
	DeactivateAll(ctx context.Context, kind store.AssociationKind, sessionID string) error
	Deactivate(ctx context.Context, kind store.AssociationKind, sessionID, key string) error
}

// SessionState is the narrow contract the Context verbs need from the
// live session (C5): per-session string context, user fields, and
// quick-reply suggestions. *session.Session satisfies this.
type SessionState interface {
	SetContext(name, value string)
	SetUserField(key, value string)
	AddSuggestion(contextName, text string)
	ClearSuggestions()
}

// RegisterContext wires USE_KB/CLEAR_KB/USE_TOOL/CLEAR_TOOLS/
// USE_WEBSITE/CLEAR_WEBSITES/ADD_KB/SET_CONTEXT/ADD_SUGGESTION/
// SET_USER for one session's evaluation (spec.md §4.4's Context group).
func RegisterContext(e *expr.Engine, sc SessionContext, assoc AssociationStore, state SessionState) error {
	c := &contextVerbs{sc: sc, assoc: assoc, state: state}
	verbs := map[string]expr.Handler{
		"USE_KB":         c.use(store.AssocKB),
		"CLEAR_KB":       c.clearOne(store.AssocKB),
		"USE_TOOL":       c.use(store.AssocTool),
		"CLEAR_TOOLS":    c.clearAll(store.AssocTool),
		"USE_WEBSITE":    c.use(store.AssocWebsite),
		"CLEAR_WEBSITES": c.clearAll(store.AssocWebsite),
		"ADD_KB":         c.use(store.AssocKB),
		"SET_CONTEXT":    c.setContext,
		"ADD_SUGGESTION": c.addSuggestion,
		"SET_USER":       c.setUser,
	}
	for name, h := range verbs {
		if err := e.RegisterSyntax(name, true, h); err != nil {
			return fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return nil
}

type contextVerbs struct {
	sc    SessionContext
	assoc AssociationStore
	state SessionState
}

// use activates an association of kind, shared by USE_KB/USE_TOOL/
// USE_WEBSITE/ADD_KB (spec.md: ADD_KB is "a mirror of USE KB for
// legacy scripts").
func (c *contextVerbs) use(kind store.AssociationKind) expr.Handler {
	return func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		if len(args) != 1 {
			return nil, NewError(KindInvalidArgument, "expected exactly one argument (name)")
		}
		err := c.assoc.UpsertActivate(contextFrom(cc), kind, store.Association{
			SessionID: c.sc.SessionID,
			BotID:     c.sc.BotID,
			Key:       toString(args[0]),
			IsActive:  true,
		})
		if err != nil {
			return nil, Wrap(KindUpstream, "activating association failed", err)
		}
		return nil, nil
	}
}

// clearOne deactivates a single named association when an argument is
// given, otherwise every active association of kind (CLEAR_KB's
// optional-name form).
func (c *contextVerbs) clearOne(kind store.AssociationKind) expr.Handler {
	return func(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
		ctx := contextFrom(cc)
		if len(args) == 0 {
			if err := c.assoc.DeactivateAll(ctx, kind, c.sc.SessionID); err != nil {
				return nil, Wrap(KindUpstream, "clearing associations failed", err)
			}
			return nil, nil
		}
		if len(args) != 1 {
			return nil, NewError(KindInvalidArgument, "expected at most one argument (name)")
		}
		if err := c.assoc.Deactivate(ctx, kind, c.sc.SessionID, toString(args[0])); err != nil {
			return nil, Wrap(KindUpstream, "clearing association failed", err)
		}
		return nil, nil
	}
}

// clearAll deactivates every active association of kind, for the
// no-argument CLEAR_TOOLS/CLEAR_WEBSITES forms.
func (c *contextVerbs) clearAll(kind store.AssociationKind) expr.Handler {
	return func(cc *expr.CallContext, _ []expr.Value) (expr.Value, error) {
		if err := c.assoc.DeactivateAll(contextFrom(cc), kind, c.sc.SessionID); err != nil {
			return nil, Wrap(KindUpstream, "clearing associations failed", err)
		}
		return nil, nil
	}
}

func (c *contextVerbs) setContext(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "SET_CONTEXT requires (name, value)")
	}
	c.state.SetContext(toString(args[0]), toString(args[1]))
	return nil, nil
}

func (c *contextVerbs) addSuggestion(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "ADD_SUGGESTION requires (context, text)")
	}
	c.state.AddSuggestion(toString(args[0]), toString(args[1]))
	return nil, nil
}

func (c *contextVerbs) setUser(_ *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "SET_USER requires (key, value)")
	}
	c.state.SetUserField(toString(args[0]), toString(args[1]))
	return nil, nil
}
