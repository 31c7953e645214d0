package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/generalbots/botcore/pkg/models"
)

// CalendarStore is the BOOK/BOOK_MEETING/CHECK_AVAILABILITY contract:
// conflict-checked event creation plus a range query for free-slot
// computation. Event IDs use github.com/google/uuid, matching
// teacher's pervasive use of it for resource identifiers.
type CalendarStore interface {
	// Create persists e (assigning an ID if empty) after the caller has
	// already conflict-checked it.
	Create(ctx context.Context, e models.CalendarEvent) (models.CalendarEvent, error)

	// ListBetween returns every event for botID overlapping [from, to).
	ListBetween(ctx context.Context, botID string, from, to time.Time) ([]models.CalendarEvent, error)
}

// MemCalendarStore is an in-memory CalendarStore.
type MemCalendarStore struct {
	mu     sync.Mutex
	events map[string][]models.CalendarEvent // botID -> events
}

func NewMemCalendarStore() *MemCalendarStore {
	return &MemCalendarStore{events: make(map[string][]models.CalendarEvent)}
}

func (s *MemCalendarStore) Create(_ context.Context, e models.CalendarEvent) (models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.events[e.BotID] = append(s.events[e.BotID], e)
	return e, nil
}

func (s *MemCalendarStore) ListBetween(_ context.Context, botID string, from, to time.Time) ([]models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CalendarEvent
	window := models.CalendarEvent{StartTime: from, DurationMin: int(to.Sub(from).Minutes())}
	for _, e := range s.events[botID] {
		if e.Overlaps(window) {
			out = append(out, e)
		}
	}
	return out, nil
}
