package store

import (
	"context"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo), used when database.driver is "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go), the default local connection

	"github.com/generalbots/botcore/internal/declare"
)

// OpenSQLiteConfigStore opens the default local connection against a
// modernc.org/sqlite-backed file, matching spec.md §4.3's default-local-
// connection case for TABLE declarations with no explicit connection.
func OpenSQLiteConfigStore(ctx context.Context, path string) (*SQLConfigStore, error) {
	return OpenSQLConfigStore(ctx, "sqlite", path, declare.DialectSQLite)
}

func OpenSQLiteDeclarationStore(ctx context.Context, path string) (*SQLDeclarationStore, error) {
	return OpenSQLDeclarationStore(ctx, "sqlite", path, declare.DialectSQLite)
}

func OpenSQLiteAssociationStore(ctx context.Context, path string) (*SQLAssociationStore, error) {
	return OpenSQLAssociationStore(ctx, "sqlite", path, declare.DialectSQLite)
}

func OpenSQLiteMemoryStore(ctx context.Context, path string) (*SQLMemoryStore, error) {
	return OpenSQLMemoryStore(ctx, "sqlite", path, declare.DialectSQLite)
}

// OpenCGOSQLiteDeclarationStore opens against the cgo-enabled
// mattn/go-sqlite3 driver. Nothing in this module calls it, and no TABLE
// connection setting selects it: ExecuteDDL ignores the connection name.
func OpenCGOSQLiteDeclarationStore(ctx context.Context, path string) (*SQLDeclarationStore, error) {
	return OpenSQLDeclarationStore(ctx, "sqlite3", path, declare.DialectSQLite)
}
