package models

import "time"

// SessionState tracks whether a session is mid-turn or parked awaiting a
// HEAR.
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionAwaitHear SessionState = "awaiting_input"
)

// UserSession is a live conversation bound to (user, bot, channel). It may
// be suspended on HEAR, in which case PendingVar names the script
// variable the next inbound message will bind.
type UserSession struct {
	SessionID string
	UserID    string
	BotID     string
	Channel   string

	State      SessionState
	PendingVar string

	// Contexts holds SET_CONTEXT name/value pairs: a per-session string
	// store scripts use to stash state across turns (spec.md §4.4).
	Contexts map[string]string

	// UserFields are SET USER k,v values, scoped to this session.
	UserFields map[string]string

	// Suggestions is the ordered list of quick-reply buttons accumulated
	// by ADD_SUGGESTION until Session.ClearSuggestions empties it.
	Suggestions []Suggestion

	Locale string

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Suggestion is one quick-reply button.
type Suggestion struct {
	Context string
	Text    string
}

// ToolAssociation links a session to a tool name, created by USE TOOL and
// cleared by CLEAR TOOLS.
type ToolAssociation struct {
	SessionID string
	ToolName  string
	AddedAt   time.Time
}

// KbAssociation links a session to a knowledge base, soft-deleted via
// IsActive.
type KbAssociation struct {
	SessionID        string
	BotID            string
	KBName           string
	KBFolderPath     string
	QdrantCollection string
	AddedByTool      bool
	IsActive         bool
	AddedAt          time.Time
}

// WebsiteAssociation links a session to a crawled website, soft-deleted
// via IsActive.
type WebsiteAssociation struct {
	SessionID      string
	BotID          string
	WebsiteURL     string
	CollectionName string
	IsActive       bool
	AddedAt        time.Time
}

// Memory is a (user_id, bot_id, key) -> value row written by REMEMBER and
// read by RECALL, filtered on read by ExpiresAt.
type Memory struct {
	UserID    string
	BotID     string
	Key       string
	Value     string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the memory entry is no longer visible to RECALL.
func (m Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}
