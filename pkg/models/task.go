package models

import "time"

// TaskStatus tracks a CREATE_TASK row's lifecycle.
type TaskStatus string

const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

// TaskPriority is derived from days-until-due at creation time (spec.md
// §4.4: <=1 day high, <=7 days medium, else low).
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// Task is one CREATE_TASK/ASSIGN_SMART row.
type Task struct {
	ID        string
	BotID     string
	Title     string
	Assignee  string
	ProjectID string
	DueAt     time.Time
	Priority  TaskPriority
	Status    TaskStatus
	CreatedAt time.Time
}

// CalendarEvent is one BOOK/BOOK_MEETING row.
type CalendarEvent struct {
	ID          string
	BotID       string
	Title       string
	Description string
	StartTime   time.Time
	DurationMin int
	Location    string
	Attendees   []string
	CreatedAt   time.Time
}

// End returns the event's end time.
func (e CalendarEvent) End() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMin) * time.Minute)
}

// Overlaps reports whether the two events share any time.
func (e CalendarEvent) Overlaps(o CalendarEvent) bool {
	return e.StartTime.Before(o.End()) && o.StartTime.Before(e.End())
}
