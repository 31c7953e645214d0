package models

import "time"

// DeclarationKind discriminates the variants of a harvested trigger.
type DeclarationKind string

const (
	KindScheduled    DeclarationKind = "scheduled"
	KindWebhook      DeclarationKind = "webhook"
	KindTableTrigger DeclarationKind = "table_trigger"
	KindWebsite      DeclarationKind = "website_crawl"
)

// TableTriggerEvent is the data-change event a TableTrigger declaration
// fires on.
type TableTriggerEvent string

const (
	EventInsert TableTriggerEvent = "insert"
	EventUpdate TableTriggerEvent = "update"
	EventDelete TableTriggerEvent = "delete"
)

// Declaration is a compile-time-harvested trigger row. Its key is
// (BotID, Kind, TargetOrEndpoint, ScriptName); at most one active
// declaration exists per key, enforced by the declaration store's
// upsert-on-conflict semantics.
type Declaration struct {
	ID         string
	BotID      string
	Kind       DeclarationKind
	ScriptName string

	// TargetOrEndpoint is the cron expression for Scheduled, the HTTP
	// endpoint path for Webhook, the table name for TableTrigger, or the
	// crawl URL for WebsiteCrawl.
	TargetOrEndpoint string

	// Schedule carries the verbatim cron expression for Scheduled
	// declarations (duplicated into TargetOrEndpoint for the key, kept
	// here too so callers don't have to know the key encoding).
	Schedule string

	// TableEvent is set for TableTrigger declarations.
	TableEvent TableTriggerEvent

	// RefreshPolicy, Depth, MaxPages are set for WebsiteCrawl declarations.
	RefreshPolicy string
	Depth         int
	MaxPages      int

	IsActive      bool
	LastTriggered *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the logical uniqueness key for this declaration, matching
// spec.md's (bot_id, kind, target_or_endpoint, script_name).
func (d Declaration) Key() (botID string, kind DeclarationKind, target string, script string) {
	return d.BotID, d.Kind, d.TargetOrEndpoint, d.ScriptName
}

// TableColumn describes one field of a TABLE declaration.
type TableColumn struct {
	Name       string
	Type       string // string|integer|double|date|datetime|boolean|text|guid, with optional (len[,prec])
	Length     int
	Precision  int
	IsKey      bool
	Required   bool
	Default    string
	References string
}

// TableSchema is the logical-schema record upserted for a TABLE
// declaration.
type TableSchema struct {
	BotID      string
	Name       string
	Connection string // empty means the bot's default connection
	Columns    []TableColumn
}
