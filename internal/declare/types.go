// Package declare harvests the declarative triggers a compiled script
// emits (SET SCHEDULE, WEBHOOK, USE WEBSITE, TABLE) and generates the
// dual MCP/function-calling tool schema from a script's PARAM lines.
package declare

import (
	"context"

	"github.com/generalbots/botcore/pkg/models"
)

// DeclarationStore persists harvested triggers. Implementations live in
// internal/store; Harvester depends only on this narrow contract so it
// can be unit-tested against an in-memory fake.
type DeclarationStore interface {
	// Upsert inserts or replaces the declaration identified by its Key(),
	// setting IsActive and keeping an existing row's LastTriggered.
	Upsert(ctx context.Context, decl models.Declaration) error

	// ListActive returns every active declaration for a bot.
	ListActive(ctx context.Context, botID string) ([]models.Declaration, error)

	// Deactivate marks declarations belonging to scriptName that are no
	// longer present in the latest harvest as inactive, so a removed
	// SET SCHEDULE/WEBHOOK/USE WEBSITE line stops firing.
	Deactivate(ctx context.Context, botID, scriptName string, keep []models.Declaration) error
}

// TableSchemaStore persists logical TABLE schemas and executes the
// generated DDL.
type TableSchemaStore interface {
	UpsertSchema(ctx context.Context, schema models.TableSchema) error
	ExecuteDDL(ctx context.Context, connection, ddl string) error

	// GetSchema returns the harvested schema for (botID, table), so
	// callers that bind values positionally (SAVE's declaration-order
	// shape) know the column order without re-parsing the source TABLE
	// declaration.
	GetSchema(ctx context.Context, botID, table string) (models.TableSchema, bool, error)
}
