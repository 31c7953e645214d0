package keywords

import (
	"github.com/generalbots/botcore/internal/expr"
)

// Deps bundles the host-side collaborators a per-session verb
// registration needs. Fields are nil-checked individually so a caller
// exercising only a subset of verb groups (e.g. in a unit test) doesn't
// have to stand up the whole runtime.
type Deps struct {
	Bus   ResponseBus
	Trace TraceLogger

	Gate    TableAccessChecker
	Rows    RowStore
	Schemas SchemaReader

	// HTTPClient backs the HTTP verb group. Nil leaves POST/PUT/PATCH/
	// GRAPHQL/SOAP unregistered and DELETE's URL-shaped form rejected,
	// per RegisterData's nil-HTTPDeleter contract.
	HTTPClient HTTPClient

	Assoc        AssociationStore
	SessionState SessionState

	// Files backs the Files & archives verb group. Nil leaves READ/
	// WRITE/COPY/MOVE/LIST/COMPRESS/EXTRACT/UPLOAD/DOWNLOAD/
	// GENERATE_PDF/MERGE_PDF unregistered.
	Files FileStore

	// Memory, Tasks, and Calendar back the Task & calendar verb group.
	// All three must be non-nil for REMEMBER/RECALL/CREATE_TASK/
	// ASSIGN_SMART/BOOK/BOOK_MEETING/CHECK_AVAILABILITY to register.
	Memory   MemoryStore
	Tasks    TaskStore
	Calendar CalendarStore

	// LLM backs the LLM-adjacent verb group. Nil registers LLM/IMAGE/
	// VIDEO/AUDIO/SEE anyway (per spec.md §4.4's feature-gated
	// dispatch), but every call returns the disabled placeholder
	// instead of reaching a provider.
	LLM LLMProvider

	// Decls backs ON's runtime table-trigger declaration write. Nil
	// still registers ON and WEBHOOK (WEBHOOK never needs a store), but
	// ON fails if a script actually calls it.
	Decls DeclarationWriter
}

// RegisterAll wires every verb group this package implements into e for
// one session's evaluation.
func RegisterAll(e *expr.Engine, sc SessionContext, deps Deps) error {
	if err := RegisterStringHelpers(e); err != nil {
		return err
	}
	if err := RegisterSwitchRuntime(e); err != nil {
		return err
	}
	if deps.Bus != nil {
		if err := RegisterConversational(e, sc, deps.Bus, deps.Trace); err != nil {
			return err
		}
	}
	var deleter HTTPDeleter
	if deps.HTTPClient != nil {
		h, err := RegisterHTTP(e, deps.HTTPClient)
		if err != nil {
			return err
		}
		deleter = h
	}
	if deps.Gate != nil && deps.Rows != nil && deps.Schemas != nil {
		if err := RegisterData(e, sc, deps.Gate, deps.Rows, deps.Schemas, deleter); err != nil {
			return err
		}
	}
	if deps.Assoc != nil && deps.SessionState != nil {
		if err := RegisterContext(e, sc, deps.Assoc, deps.SessionState); err != nil {
			return err
		}
	}
	if deps.Files != nil {
		if err := RegisterFiles(e, sc, deps.Files, deps.HTTPClient); err != nil {
			return err
		}
	}
	if deps.Memory != nil && deps.Tasks != nil && deps.Calendar != nil {
		if err := RegisterCalendar(e, sc, deps.Memory, deps.Tasks, deps.Calendar); err != nil {
			return err
		}
	}
	if err := RegisterLLM(e, sc, deps.LLM, deps.Files); err != nil {
		return err
	}
	if err := RegisterAutomation(e, sc, deps.Decls); err != nil {
		return err
	}
	return nil
}
