package declare

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/internal/preprocess"
	"github.com/generalbots/botcore/pkg/models"
)

type fakeDeclarationStore struct {
	upserts     []models.Declaration
	deactivated []models.Declaration
}

func (f *fakeDeclarationStore) Upsert(ctx context.Context, decl models.Declaration) error {
	f.upserts = append(f.upserts, decl)
	return nil
}

func (f *fakeDeclarationStore) ListActive(ctx context.Context, botID string) ([]models.Declaration, error) {
	return f.upserts, nil
}

func (f *fakeDeclarationStore) Deactivate(ctx context.Context, botID, scriptName string, keep []models.Declaration) error {
	f.deactivated = keep
	return nil
}

type fakeTableStore struct {
	schemas []models.TableSchema
	ddls    []string
}

func (f *fakeTableStore) UpsertSchema(ctx context.Context, schema models.TableSchema) error {
	f.schemas = append(f.schemas, schema)
	return nil
}

func (f *fakeTableStore) ExecuteDDL(ctx context.Context, connection, ddl string) error {
	f.ddls = append(f.ddls, ddl)
	return nil
}

func (f *fakeTableStore) GetSchema(ctx context.Context, botID, table string) (models.TableSchema, bool, error) {
	for _, s := range f.schemas {
		if s.BotID == botID && s.Name == table {
			return s, true, nil
		}
	}
	return models.TableSchema{}, false, nil
}

func TestHarvesterIngestPersistsDeclarationsAndSchema(t *testing.T) {
	src := `
DESCRIPTION "books a flight"
PARAM destination AS string LIKE "Lisbon" DESCRIPTION "where to fly"
SET SCHEDULE "0 8 * * *"
WEBHOOK "/hooks/book"
TABLE bookings
id AS integer KEY REQUIRED
destination AS string(64)
END TABLE
TALK "booked"
`
	result, err := preprocess.Preprocess("bot1", "book.bas", src)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	decls := &fakeDeclarationStore{}
	tables := &fakeTableStore{}
	h := NewHarvester(decls, tables, nil)

	outcome, err := h.Ingest(context.Background(), "bot1", "book.bas", DialectPostgres, result)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(decls.upserts) != 2 {
		t.Fatalf("expected 2 upserted declarations (schedule, webhook), got %d: %+v", len(decls.upserts), decls.upserts)
	}
	if len(decls.deactivated) != 2 {
		t.Fatalf("expected Deactivate called with the 2 kept declarations, got %d", len(decls.deactivated))
	}
	if len(tables.schemas) != 1 || tables.schemas[0].Name != "bookings" {
		t.Fatalf("expected bookings schema to be upserted, got %+v", tables.schemas)
	}
	if len(tables.ddls) != 1 {
		t.Fatalf("expected 1 DDL statement executed, got %d", len(tables.ddls))
	}

	if outcome.MCPSchema == nil || outcome.MCPSchema.Name != "book.bas" {
		t.Fatalf("expected MCP schema named after the script, got %+v", outcome.MCPSchema)
	}
	if outcome.ToolSchema == nil || outcome.ToolSchema.Function.Name != "book.bas" {
		t.Fatalf("expected function tool schema named after the script, got %+v", outcome.ToolSchema)
	}

	got := h.LastHarvest("bot1", "book.bas")
	if len(got) != 2 {
		t.Fatalf("expected LastHarvest to return 2 declarations, got %d", len(got))
	}
}

func TestHarvesterIngestSkipsTableStoreWhenNil(t *testing.T) {
	src := "TALK \"hi\"\n"
	result, err := preprocess.Preprocess("bot1", "hi.bas", src)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	h := NewHarvester(nil, nil, nil)
	outcome, err := h.Ingest(context.Background(), "bot1", "hi.bas", DialectPostgres, result)
	if err != nil {
		t.Fatalf("Ingest with nil stores: %v", err)
	}
	if len(outcome.Declarations) != 0 {
		t.Fatalf("expected no declarations for this script, got %+v", outcome.Declarations)
	}
}
