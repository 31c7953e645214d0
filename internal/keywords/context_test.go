package keywords

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/store"
)

type fakeAssocStore struct {
	active map[store.AssociationKind]map[string]bool
}

func newFakeAssocStore() *fakeAssocStore {
	return &fakeAssocStore{active: map[store.AssociationKind]map[string]bool{}}
}

func (f *fakeAssocStore) UpsertActivate(_ context.Context, kind store.AssociationKind, a store.Association) error {
	if f.active[kind] == nil {
		f.active[kind] = map[string]bool{}
	}
	f.active[kind][a.Key] = true
	return nil
}

func (f *fakeAssocStore) DeactivateAll(_ context.Context, kind store.AssociationKind, _ string) error {
	f.active[kind] = map[string]bool{}
	return nil
}

func (f *fakeAssocStore) Deactivate(_ context.Context, kind store.AssociationKind, _, key string) error {
	delete(f.active[kind], key)
	return nil
}

type fakeSessionState struct {
	contexts    map[string]string
	userFields  map[string]string
	suggestions []string
}

func newFakeSessionState() *fakeSessionState {
	return &fakeSessionState{contexts: map[string]string{}, userFields: map[string]string{}}
}

func (f *fakeSessionState) SetContext(name, value string)    { f.contexts[name] = value }
func (f *fakeSessionState) SetUserField(key, value string)    { f.userFields[key] = value }
func (f *fakeSessionState) AddSuggestion(ctxName, text string) {
	f.suggestions = append(f.suggestions, ctxName+":"+text)
}
func (f *fakeSessionState) ClearSuggestions() { f.suggestions = nil }

func newContextEngine(t *testing.T) (*fakeAssocStore, *fakeSessionState, func(string) any) {
	t.Helper()
	assoc := newFakeAssocStore()
	state := newFakeSessionState()
	e := expr.NewEngine()
	sc := SessionContext{BotID: "bot1", SessionID: "s1"}
	if err := RegisterContext(e, sc, assoc, state); err != nil {
		t.Fatalf("register context verbs: %v", err)
	}
	return assoc, state, func(src string) any { return run(t, e, src) }
}

func TestUseKBActivatesAssociation(t *testing.T) {
	assoc, _, eval := newContextEngine(t)
	eval(`USE_KB("handbook")`)
	if !assoc.active[store.AssocKB]["handbook"] {
		t.Fatal("expected handbook KB to be active")
	}
}

func TestClearKBWithNameDeactivatesOnlyThatOne(t *testing.T) {
	assoc, _, eval := newContextEngine(t)
	eval(`USE_KB("handbook")`)
	eval(`USE_KB("policies")`)
	eval(`CLEAR_KB("handbook")`)
	if assoc.active[store.AssocKB]["handbook"] {
		t.Fatal("expected handbook to be cleared")
	}
	if !assoc.active[store.AssocKB]["policies"] {
		t.Fatal("expected policies to remain active")
	}
}

func TestClearKBWithoutNameClearsAll(t *testing.T) {
	assoc, _, eval := newContextEngine(t)
	eval(`USE_KB("handbook")`)
	eval(`CLEAR_KB()`)
	if len(assoc.active[store.AssocKB]) != 0 {
		t.Fatalf("expected all KBs cleared, got %v", assoc.active[store.AssocKB])
	}
}

func TestClearToolsClearsAllActiveTools(t *testing.T) {
	assoc, _, eval := newContextEngine(t)
	eval(`USE_TOOL("calculator")`)
	eval(`CLEAR_TOOLS()`)
	if len(assoc.active[store.AssocTool]) != 0 {
		t.Fatalf("expected all tools cleared, got %v", assoc.active[store.AssocTool])
	}
}

func TestSetContextStoresStringValue(t *testing.T) {
	_, state, eval := newContextEngine(t)
	eval(`SET_CONTEXT("step", "checkout")`)
	if state.contexts["step"] != "checkout" {
		t.Fatalf("expected context value stored, got %v", state.contexts)
	}
}

func TestAddSuggestionAppendsQuickReply(t *testing.T) {
	_, state, eval := newContextEngine(t)
	eval(`ADD_SUGGESTION("menu", "Show me options")`)
	if len(state.suggestions) != 1 || state.suggestions[0] != "menu:Show me options" {
		t.Fatalf("expected one suggestion recorded, got %v", state.suggestions)
	}
}

func TestSetUserStoresSessionScopedField(t *testing.T) {
	_, state, eval := newContextEngine(t)
	eval(`SET_USER("tier", "gold")`)
	if state.userFields["tier"] != "gold" {
		t.Fatalf("expected user field stored, got %v", state.userFields)
	}
}
