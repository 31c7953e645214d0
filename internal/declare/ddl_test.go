package declare

import (
	"strings"
	"testing"

	"github.com/generalbots/botcore/pkg/models"
)

func TestColumnSQLType(t *testing.T) {
	tests := []struct {
		name    string
		col     models.TableColumn
		dialect Dialect
		want    string
	}{
		{"string default length postgres", models.TableColumn{Type: "string"}, DialectPostgres, "VARCHAR(255)"},
		{"string explicit length mysql", models.TableColumn{Type: "string", Length: 32}, DialectMySQL, "VARCHAR(32)"},
		{"integer postgres", models.TableColumn{Type: "integer"}, DialectPostgres, "INTEGER"},
		{"integer with precision becomes decimal", models.TableColumn{Type: "integer", Length: 10, Precision: 2}, DialectPostgres, "DECIMAL(10,2)"},
		{"double postgres", models.TableColumn{Type: "double"}, DialectPostgres, "DOUBLE PRECISION"},
		{"date", models.TableColumn{Type: "date"}, DialectMySQL, "DATE"},
		{"datetime postgres", models.TableColumn{Type: "datetime"}, DialectPostgres, "TIMESTAMP"},
		{"datetime mysql", models.TableColumn{Type: "datetime"}, DialectMySQL, "DATETIME"},
		{"boolean postgres", models.TableColumn{Type: "boolean"}, DialectPostgres, "BOOLEAN"},
		{"boolean mysql", models.TableColumn{Type: "boolean"}, DialectMySQL, "TINYINT(1)"},
		{"text", models.TableColumn{Type: "text"}, DialectPostgres, "TEXT"},
		{"guid postgres", models.TableColumn{Type: "guid"}, DialectPostgres, "UUID"},
		{"uuid mysql", models.TableColumn{Type: "uuid"}, DialectMySQL, "CHAR(36)"},
		{"unknown falls back to text", models.TableColumn{Type: "blob"}, DialectPostgres, "TEXT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ColumnSQLType(tc.col, tc.dialect)
			if got != tc.want {
				t.Errorf("ColumnSQLType(%+v, %s) = %q, want %q", tc.col, tc.dialect, got, tc.want)
			}
		})
	}
}

func TestBuildCreateTable(t *testing.T) {
	schema := models.TableSchema{
		Name: "orders",
		Columns: []models.TableColumn{
			{Name: "id", Type: "integer", IsKey: true, Required: true},
			{Name: "total", Type: "decimal", Length: 10, Precision: 2, Default: "0"},
			{Name: "customer_id", Type: "guid", References: "customers(id)"},
		},
	}

	ddl, err := BuildCreateTable(schema, DialectPostgres)
	if err != nil {
		t.Fatalf("BuildCreateTable: %v", err)
	}
	if !strings.HasPrefix(ddl, `CREATE TABLE IF NOT EXISTS "orders"`) {
		t.Fatalf("expected CREATE TABLE IF NOT EXISTS prefix, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, `"id" INTEGER NOT NULL`) {
		t.Fatalf("expected id column, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, `"total" DECIMAL(10,2) DEFAULT 0`) {
		t.Fatalf("expected total column with default, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, `REFERENCES customers(id)`) {
		t.Fatalf("expected foreign key reference, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, `PRIMARY KEY ("id")`) {
		t.Fatalf("expected primary key clause, got:\n%s", ddl)
	}
}

func TestBuildCreateTableMySQLQuoting(t *testing.T) {
	schema := models.TableSchema{
		Name:    "events",
		Columns: []models.TableColumn{{Name: "id", Type: "guid", IsKey: true}},
	}
	ddl, err := BuildCreateTable(schema, DialectMySQL)
	if err != nil {
		t.Fatalf("BuildCreateTable: %v", err)
	}
	if !strings.Contains(ddl, "`events`") || !strings.Contains(ddl, "`id` CHAR(36)") {
		t.Fatalf("expected backtick-quoted identifiers for mysql, got:\n%s", ddl)
	}
}

func TestBuildCreateTableRejectsEmptySchema(t *testing.T) {
	if _, err := BuildCreateTable(models.TableSchema{Name: "empty"}, DialectPostgres); err == nil {
		t.Fatal("expected error for a table with no columns")
	}
	if _, err := BuildCreateTable(models.TableSchema{}, DialectPostgres); err == nil {
		t.Fatal("expected error for a table with no name")
	}
}
