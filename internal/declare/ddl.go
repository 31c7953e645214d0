package declare

import (
	"fmt"
	"strings"

	"github.com/generalbots/botcore/pkg/models"
)

// Dialect is the SQL dialect a TABLE declaration's DDL targets.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ColumnSQLType maps a harvested TableColumn's source-level type to the
// column type for the given dialect, per the dialect table in spec.md
// §4.3. Sqlite is added to the distilled table because the default
// local connection runs against sqlite, not postgres/mysql; it maps to
// sqlite's own storage classes (TEXT, INTEGER, REAL) since sqlite's type
// system is dynamic.
func ColumnSQLType(col models.TableColumn, dialect Dialect) string {
	switch strings.ToLower(col.Type) {
	case "string":
		n := col.Length
		if n == 0 {
			n = 255
		}
		if dialect == DialectSQLite {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	case "integer", "int":
		if col.Precision > 0 || col.Length > 0 {
			return fmt.Sprintf("DECIMAL(%d,%d)", nonZero(col.Length, 18), col.Precision)
		}
		if dialect == DialectSQLite {
			return "INTEGER"
		}
		return "INTEGER"
	case "double", "float", "decimal":
		if (col.Type == "decimal" || col.Precision > 0) && col.Length > 0 {
			return fmt.Sprintf("DECIMAL(%d,%d)", col.Length, col.Precision)
		}
		if dialect == DialectSQLite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case "date":
		return "DATE"
	case "datetime":
		switch dialect {
		case DialectMySQL:
			return "DATETIME"
		case DialectSQLite:
			return "TEXT"
		default:
			return "TIMESTAMP"
		}
	case "boolean":
		switch dialect {
		case DialectMySQL:
			return "TINYINT(1)"
		case DialectSQLite:
			return "INTEGER"
		default:
			return "BOOLEAN"
		}
	case "text":
		return "TEXT"
	case "guid", "uuid":
		switch dialect {
		case DialectMySQL:
			return "CHAR(36)"
		case DialectSQLite:
			return "TEXT"
		default:
			return "UUID"
		}
	default:
		return "TEXT"
	}
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// BuildCreateTable generates a CREATE TABLE IF NOT EXISTS statement for
// the harvested schema, choosing the column types from the dialect
// table and marking IsKey/Required/Default/References per column.
func BuildCreateTable(schema models.TableSchema, dialect Dialect) (string, error) {
	if schema.Name == "" {
		return "", fmt.Errorf("declare: table schema has no name")
	}
	if len(schema.Columns) == 0 {
		return "", fmt.Errorf("declare: table %s has no columns", schema.Name)
	}

	var cols []string
	var keys []string
	for _, col := range schema.Columns {
		parts := []string{quoteIdent(col.Name, dialect), ColumnSQLType(col, dialect)}
		if col.Required || col.IsKey {
			parts = append(parts, "NOT NULL")
		}
		if col.Default != "" {
			parts = append(parts, "DEFAULT "+col.Default)
		}
		if col.References != "" {
			parts = append(parts, "REFERENCES "+col.References)
		}
		cols = append(cols, strings.Join(parts, " "))
		if col.IsKey {
			keys = append(keys, quoteIdent(col.Name, dialect))
		}
	}
	if len(keys) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(schema.Name, dialect), strings.Join(cols, ",\n\t")), nil
}

func quoteIdent(name string, dialect Dialect) string {
	if dialect == DialectMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
