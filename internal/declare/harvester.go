package declare

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/generalbots/botcore/internal/preprocess"
	"github.com/generalbots/botcore/pkg/models"
)

// Harvester turns a preprocess.Result into persisted declarations,
// logical table schemas (plus their executed DDL), and the dual tool
// schema a compiled script carries on its CompiledScript record.
//
// It keeps a small in-memory index of the declarations it harvested
// last time per (botID, scriptName) so a re-harvest can tell the
// declaration store which rows are no longer present and must be
// deactivated, mirroring the discovered/eligible split the skills
// manager keeps between its skillsMu and eligibleMu maps.
type Harvester struct {
	decls  DeclarationStore
	tables TableSchemaStore
	logger *slog.Logger

	mu   sync.RWMutex
	last map[string][]models.Declaration // "botID/scriptName" -> last harvest
}

// NewHarvester builds a Harvester. tables may be nil for deployments
// that never declare TABLE triggers; Ingest then skips DDL execution.
func NewHarvester(decls DeclarationStore, tables TableSchemaStore, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		decls:  decls,
		tables: tables,
		logger: logger,
		last:   make(map[string][]models.Declaration),
	}
}

// HarvestOutcome is what Ingest did with one preprocess.Result.
type HarvestOutcome struct {
	Declarations []models.Declaration
	MCPSchema    *models.MCPToolSchema
	ToolSchema   *models.FunctionToolSchema
}

// Ingest upserts every declaration and table schema a preprocess.Result
// harvested, deactivates declarations from a prior harvest of the same
// script that no longer appear, and builds the script's dual tool
// schema from its PARAM/DESCRIPTION lines.
func (h *Harvester) Ingest(ctx context.Context, botID, scriptName string, dialect Dialect, result preprocess.Result) (HarvestOutcome, error) {
	for i := range result.Declarations {
		result.Declarations[i].BotID = botID
		result.Declarations[i].ScriptName = scriptName
		result.Declarations[i].IsActive = true
		if h.decls != nil {
			if err := h.decls.Upsert(ctx, result.Declarations[i]); err != nil {
				return HarvestOutcome{}, fmt.Errorf("declare: upsert declaration %s/%s: %w", scriptName, result.Declarations[i].Kind, err)
			}
		}
	}

	if h.decls != nil {
		if err := h.decls.Deactivate(ctx, botID, scriptName, result.Declarations); err != nil {
			return HarvestOutcome{}, fmt.Errorf("declare: deactivate stale declarations for %s: %w", scriptName, err)
		}
	}

	key := botID + "/" + scriptName
	h.mu.Lock()
	h.last[key] = result.Declarations
	h.mu.Unlock()

	for _, schema := range result.Tables {
		schema.BotID = botID
		if h.tables == nil {
			continue
		}
		if err := h.tables.UpsertSchema(ctx, schema); err != nil {
			return HarvestOutcome{}, fmt.Errorf("declare: upsert table schema %s: %w", schema.Name, err)
		}
		ddl, err := BuildCreateTable(schema, dialect)
		if err != nil {
			return HarvestOutcome{}, fmt.Errorf("declare: build DDL for table %s: %w", schema.Name, err)
		}
		if err := h.tables.ExecuteDDL(ctx, schema.Connection, ddl); err != nil {
			return HarvestOutcome{}, fmt.Errorf("declare: execute DDL for table %s: %w", schema.Name, err)
		}
		h.logger.Info("declare: ensured table", "bot_id", botID, "table", schema.Name, "columns", len(schema.Columns))
	}

	mcp, fn := BuildToolSchemas(scriptName, result.Description, result.Params)

	h.logger.Debug("declare: harvested script",
		"bot_id", botID, "script", scriptName,
		"declarations", len(result.Declarations), "tables", len(result.Tables), "params", len(result.Params))

	return HarvestOutcome{
		Declarations: result.Declarations,
		MCPSchema:    mcp,
		ToolSchema:   fn,
	}, nil
}

// LastHarvest returns the declarations recorded for a script on its
// most recent Ingest call, for tests and operator inspection.
func (h *Harvester) LastHarvest(botID, scriptName string) []models.Declaration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.Declaration(nil), h.last[botID+"/"+scriptName]...)
}
