// Package store implements the four persistence contracts the core
// consumes (spec.md §4.10): bot configuration, harvested declarations,
// session associations, and per-user memory. Each contract has a
// Postgres-backed implementation (github.com/lib/pq), a SQLite-backed
// implementation (modernc.org/sqlite, with mattn/go-sqlite3 registered as
// the alternate "sqlite3" driver), and an in-memory
// implementation used by tests and single-process development.
package store

import (
	"context"
	"time"

	"github.com/generalbots/botcore/internal/declare"
	"github.com/generalbots/botcore/pkg/models"
)

// ConfigStore is the bot-scoped key/value configuration contract.
// SyncGbotConfig replaces every key named in csvText, matching the
// .gbot/config.csv convention (spec.md §6): one "key,value" pair per
// line, no header required.
type ConfigStore interface {
	Get(ctx context.Context, botID, key, fallback string) (string, error)
	Upsert(ctx context.Context, botID, key, value string) error
	SyncGbotConfig(ctx context.Context, botID, csvText string) (changed map[string]string, err error)
	All(ctx context.Context, botID string) (map[string]string, error)
}

// DeclarationStore mirrors internal/declare.DeclarationStore plus the
// scheduler-facing operations spec.md §4.10 names (delete-by-predicate,
// set_last_triggered). Kept as a distinct interface from declare's
// narrower one so C10 implementations satisfy both with the same
// underlying type.
type DeclarationStore interface {
	declare.DeclarationStore
	ListActiveByKind(ctx context.Context, botID string, kind models.DeclarationKind) ([]models.Declaration, error)
	Delete(ctx context.Context, botID string, kind models.DeclarationKind, target string) error
	SetLastTriggered(ctx context.Context, id string, ts time.Time) error
}

// AssociationKind discriminates the three near-identical association
// stores (session<->tool, session<->KB, session<->website) spec.md
// §4.10 describes; a single generic contract serves all three since
// their shape (session_id, key, attributes, is_active, added_at) is
// identical modulo attribute payload.
type AssociationKind string

const (
	AssocTool    AssociationKind = "tool"
	AssocKB      AssociationKind = "kb"
	AssocWebsite AssociationKind = "website"
)

// Association is one row of any of the three association tables.
// Attributes carries the kind-specific extra columns (KBFolderPath,
// QdrantCollection, CollectionName, ...) as a flat string map.
type Association struct {
	SessionID  string
	BotID      string
	Key        string // tool name, KB name, or website URL
	Attributes map[string]string
	IsActive   bool
	AddedAt    time.Time
}

// AssociationStore is the session<->resource soft-link contract.
type AssociationStore interface {
	UpsertActivate(ctx context.Context, kind AssociationKind, a Association) error
	DeactivateAll(ctx context.Context, kind AssociationKind, sessionID string) error
	Deactivate(ctx context.Context, kind AssociationKind, sessionID, key string) error
	ListActive(ctx context.Context, kind AssociationKind, sessionID string) ([]Association, error)
}

// MemoryStore is the REMEMBER/RECALL contract: upsert on
// (user_id, bot_id, key), read filtered by expiry.
type MemoryStore interface {
	Put(ctx context.Context, m models.Memory) error
	Get(ctx context.Context, userID, botID, key string, now time.Time) (*models.Memory, error)
}

// TableSchemaStore is declare.TableSchemaStore, re-exported so C10's
// implementations satisfy C3's consumer interface without an import
// cycle (declare imports nothing from store).
type TableSchemaStore = declare.TableSchemaStore
