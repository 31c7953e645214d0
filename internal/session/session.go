// Package session implements the session & response bus (spec.md §4.5):
// per-session context (user, bot, suspended-on-HEAR state) and the
// bounded outbound channel TALK writes to. Grounded on the teacher's
// sessions/store.go session-struct-plus-expiry shape and
// outbound/envelope.go's envelope convention, generalized from the
// teacher's single-channel chatbot session to the bot/KB/website/tool
// association model spec.md §3 describes.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/generalbots/botcore/pkg/models"
)

// Envelope is the outbound response envelope spec.md §6 defines, drained
// by a per-session adapter external to this package.
type Envelope struct {
	BotID       string              `json:"bot_id"`
	UserID      string              `json:"user_id"`
	SessionID   string              `json:"session_id"`
	Channel     string              `json:"channel"`
	Content     string              `json:"content"`
	MessageType string              `json:"message_type"`
	StreamToken string              `json:"stream_token,omitempty"`
	IsComplete  bool                `json:"is_complete"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// outboundBufferSize bounds each session's outbound channel so a stalled
// adapter cannot make TALK block the evaluator indefinitely; spec.md §5
// requires TALK to never block the evaluator.
const outboundBufferSize = 64

// Session is a live conversation bound to (user, bot, channel), mirroring
// models.UserSession plus the runtime state (outbound channel) the bus
// needs that isn't persisted.
type Session struct {
	models.UserSession

	mu       sync.Mutex
	outbound chan Envelope
}

// Bus is the in-process session & response bus: an idle-timeout-aware
// registry of live sessions plus their outbound channels. One Bus
// instance serves every session for a single process; sessions
// themselves are never shared across processes (spec.md §1's
// single-node non-goal).
type Bus struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
	idle     time.Duration
}

// NewBus constructs a Bus. idleTimeout is the duration of inactivity
// after which a session is eligible for eviction by Sweep; zero disables
// eviction.
func NewBus(idleTimeout time.Duration, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{sessions: make(map[string]*Session), logger: logger, idle: idleTimeout}
}

// GetOrCreate returns the live session for (sessionID, userID, botID,
// channel), creating it if absent (spec.md §3: "created on first message
// from a channel").
func (b *Bus) GetOrCreate(sessionID, userID, botID, channel string) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[sessionID]; ok {
		s.mu.Lock()
		s.LastActivityAt = time.Now()
		s.mu.Unlock()
		return s
	}
	now := time.Now()
	s := &Session{
		UserSession: models.UserSession{
			SessionID:      sessionID,
			UserID:         userID,
			BotID:          botID,
			Channel:        channel,
			State:          models.SessionActive,
			Contexts:       make(map[string]string),
			UserFields:     make(map[string]string),
			CreatedAt:      now,
			LastActivityAt: now,
		},
		outbound: make(chan Envelope, outboundBufferSize),
	}
	b.sessions[sessionID] = s
	return s
}

// Get returns the session if it exists, without creating one.
func (b *Bus) Get(sessionID string) (*Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[sessionID]
	return s, ok
}

// Close terminates a session explicitly (spec.md §3: "terminated by idle
// timeout or explicit close").
func (b *Bus) Close(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[sessionID]; ok {
		close(s.outbound)
		delete(b.sessions, sessionID)
	}
}

// Sweep evicts every session whose LastActivityAt is older than the
// bus's idle timeout, returning the evicted session IDs.
func (b *Bus) Sweep(now time.Time) []string {
	if b.idle <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var evicted []string
	for id, s := range b.sessions {
		s.mu.Lock()
		stale := now.Sub(s.LastActivityAt) > b.idle
		s.mu.Unlock()
		if stale {
			close(s.outbound)
			delete(b.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// All returns every currently live session, for broadcast operations
// like the drive monitor's change_theme event.
func (b *Bus) All() []*Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	return out
}

// Enqueue implements keywords.ResponseBus: appends a complete text
// envelope to the session's outbound channel without blocking the
// caller. If the channel is full the message is dropped and logged
// rather than blocking the evaluator, matching spec.md §5's "TALK must
// not block the evaluator" requirement under backpressure.
func (b *Bus) Enqueue(ctx context.Context, sessionID, text string) error {
	s, ok := b.Get(sessionID)
	if !ok {
		return fmt.Errorf("session: %s not found", sessionID)
	}
	env := Envelope{
		BotID:       s.BotID,
		UserID:      s.UserID,
		SessionID:   s.SessionID,
		Channel:     s.Channel,
		Content:     text,
		MessageType: "text",
		IsComplete:  true,
		Suggestions: s.snapshotSuggestions(),
	}
	select {
	case s.outbound <- env:
	default:
		b.logger.Warn("session: outbound channel full, dropping message", "session_id", sessionID)
	}
	return nil
}

// EnqueueEnvelope pushes a fully-formed envelope (used by the drive
// monitor's change_theme broadcast), with the same non-blocking policy.
func (b *Bus) EnqueueEnvelope(env Envelope) {
	s, ok := b.Get(env.SessionID)
	if !ok {
		return
	}
	select {
	case s.outbound <- env:
	default:
		b.logger.Warn("session: outbound channel full, dropping broadcast", "session_id", env.SessionID)
	}
}

// Outbound returns the session's outbound channel for the adapter to
// drain; only the adapter goroutine should read from it.
func (s *Session) Outbound() <-chan Envelope { return s.outbound }

// Suspend implements keywords.ResponseBus: transitions the session to
// AwaitingInput with pendingVar as the variable HEAR will bind on
// resume.
func (b *Bus) Suspend(_ context.Context, sessionID, pendingVar string) error {
	s, ok := b.Get(sessionID)
	if !ok {
		return fmt.Errorf("session: %s not found", sessionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = models.SessionAwaitHear
	s.PendingVar = pendingVar
	return nil
}

// Resume transitions the session back to Active and returns the
// variable name the next inbound message must be bound to, implementing
// the HEAR-resume invariant (spec.md §8).
func (s *Session) Resume() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.PendingVar
	s.State = models.SessionActive
	s.PendingVar = ""
	return v
}

// Awaiting reports whether the session is currently parked on HEAR.
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State == models.SessionAwaitHear
}

func (s *Session) snapshotSuggestions() []models.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Suggestion, len(s.Suggestions))
	copy(out, s.Suggestions)
	return out
}

// AddSuggestion appends a quick-reply button (ADD_SUGGESTION).
func (s *Session) AddSuggestion(contextName, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Suggestions = append(s.Suggestions, models.Suggestion{Context: contextName, Text: text})
}

// ClearSuggestions empties the accumulated suggestion list.
func (s *Session) ClearSuggestions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Suggestions = nil
}

// SetContext stores a per-session string value (SET_CONTEXT name AS
// value).
func (s *Session) SetContext(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Contexts == nil {
		s.Contexts = make(map[string]string)
	}
	s.Contexts[name] = value
}

// GetContext returns a previously SET_CONTEXT'd value.
func (s *Session) GetContext(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Contexts[name]
	return v, ok
}

// SetUserField records a session-scoped user field (SET USER k,v).
func (s *Session) SetUserField(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UserFields == nil {
		s.UserFields = make(map[string]string)
	}
	s.UserFields[key] = value
}

// Print implements keywords.TraceLogger: writes to the bot's trace log.
func (b *Bus) Print(_ context.Context, botID, sessionID, text string) {
	b.logger.Info("trace", "bot_id", botID, "session_id", sessionID, "text", text)
}
