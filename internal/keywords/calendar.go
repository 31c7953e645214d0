package keywords

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/pkg/models"
)

// businessStartHour/businessEndHour bound CHECK_AVAILABILITY's free-slot
// search (spec.md §4.4: business hours 09-17 local).
const (
	businessStartHour = 9
	businessEndHour   = 17
)

// MemoryStore is the narrow REMEMBER/RECALL contract this package needs
// from C10's memory table; *store.MemMemoryStore/*store.SQLMemoryStore
// satisfy it structurally.
type MemoryStore interface {
	Put(ctx context.Context, m models.Memory) error
	Get(ctx context.Context, userID, botID, key string, now time.Time) (*models.Memory, error)
}

// TaskStore is the narrow CREATE_TASK/ASSIGN_SMART contract this
// package needs; *store.MemTaskStore satisfies it structurally.
type TaskStore interface {
	Create(ctx context.Context, t models.Task) (models.Task, error)
	SetAssignee(ctx context.Context, botID, id, assignee string) error
	OpenCountByAssignee(ctx context.Context, botID string) (map[string]int, error)
}

// CalendarStore is the narrow BOOK/BOOK_MEETING/CHECK_AVAILABILITY
// contract this package needs; *store.MemCalendarStore satisfies it
// structurally.
type CalendarStore interface {
	Create(ctx context.Context, e models.CalendarEvent) (models.CalendarEvent, error)
	ListBetween(ctx context.Context, botID string, from, to time.Time) ([]models.CalendarEvent, error)
}

// RegisterCalendar wires REMEMBER/RECALL/CREATE_TASK/ASSIGN_SMART/BOOK/
// BOOK_MEETING/CHECK_AVAILABILITY for one session's evaluation (spec.md
// §4.4's Task & calendar group).
func RegisterCalendar(e *expr.Engine, sc SessionContext, memory MemoryStore, tasks TaskStore, calendar CalendarStore) error {
	c := &calendarVerbs{sc: sc, memory: memory, tasks: tasks, calendar: calendar}
	verbs := map[string]expr.Handler{
		"REMEMBER":           c.remember,
		"RECALL":             c.recall,
		"CREATE_TASK":        c.createTask,
		"ASSIGN_SMART":       c.assignSmart,
		"BOOK":               c.book,
		"BOOK_MEETING":       c.bookMeeting,
		"CHECK_AVAILABILITY": c.checkAvailability,
	}
	for name, handler := range verbs {
		if err := e.RegisterSyntax(name, true, handler); err != nil {
			return fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return nil
}

type calendarVerbs struct {
	sc       SessionContext
	memory   MemoryStore
	tasks    TaskStore
	calendar CalendarStore
}

func (c *calendarVerbs) remember(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "REMEMBER requires (key, value, duration)")
	}
	now := time.Now()
	expiresAt, err := parseMemoryDuration(toString(args[2]), now)
	if err != nil {
		return nil, NewError(KindInvalidArgument, "REMEMBER: "+err.Error())
	}
	m := models.Memory{
		UserID: c.sc.UserID, BotID: c.sc.BotID,
		Key: toString(args[0]), Value: toString(args[1]),
		CreatedAt: now, ExpiresAt: expiresAt,
	}
	if err := c.memory.Put(contextFrom(cc), m); err != nil {
		return nil, Wrap(KindUpstream, "REMEMBER: storing failed", err)
	}
	return nil, nil
}

func (c *calendarVerbs) recall(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "RECALL requires (key)")
	}
	m, err := c.memory.Get(contextFrom(cc), c.sc.UserID, c.sc.BotID, toString(args[0]), time.Now())
	if err != nil {
		return nil, Wrap(KindUpstream, "RECALL: lookup failed", err)
	}
	if m == nil {
		return nil, nil
	}
	return m.Value, nil
}

// parseMemoryDuration implements spec.md §4.4's REMEMBER grammar:
// forever|permanent|<N> <unit>, with a bare integer meaning days.
func parseMemoryDuration(s string, now time.Time) (*time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "forever" || s == "permanent" {
		return nil, nil
	}
	fields := strings.Fields(s)
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q", s)
	}
	unit := "days"
	if len(fields) > 1 {
		unit = fields[1]
	} else if len(fields) > 2 {
		return nil, fmt.Errorf("invalid duration %q", s)
	}
	var per time.Duration
	switch strings.TrimSuffix(unit, "s") {
	case "second":
		per = time.Second
	case "minute":
		per = time.Minute
	case "hour":
		per = time.Hour
	case "day":
		per = 24 * time.Hour
	case "week":
		per = 7 * 24 * time.Hour
	case "month":
		per = 30 * 24 * time.Hour
	case "year":
		per = 365 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("unknown duration unit %q", unit)
	}
	t := now.Add(time.Duration(n) * per)
	return &t, nil
}

// parseDueDate implements CREATE_TASK's natural-language due grammar
// (spec.md §4.4), falling back to +3 days when nothing else matches.
func parseDueDate(s string, now time.Time) time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "today":
		return now
	case "tomorrow":
		return now.AddDate(0, 0, 1)
	case "next week":
		return now.AddDate(0, 0, 7)
	case "next month":
		return now.AddDate(0, 1, 0)
	}
	if strings.HasPrefix(s, "+") {
		fields := strings.Fields(s)
		if n, err := strconv.Atoi(strings.TrimPrefix(fields[0], "+")); err == nil {
			return now.AddDate(0, 0, n)
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return now.AddDate(0, 0, 3)
}

// derivePriority implements CREATE_TASK's days-until-due priority rule.
func derivePriority(due, now time.Time) models.TaskPriority {
	switch days := due.Sub(now).Hours() / 24; {
	case days <= 1:
		return models.PriorityHigh
	case days <= 7:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// leastLoaded picks the fewest-open-tasks member of candidates (or of
// every key in counts when candidates is empty), breaking ties
// alphabetically for determinism.
func leastLoaded(counts map[string]int, candidates []string) string {
	if len(candidates) == 0 {
		best, bestN := "", -1
		for k, n := range counts {
			if bestN == -1 || n < bestN || (n == bestN && k < best) {
				best, bestN = k, n
			}
		}
		if best == "" {
			return "unassigned"
		}
		return best
	}
	best, bestN := candidates[0], counts[candidates[0]]
	for _, cand := range candidates[1:] {
		if n := counts[cand]; n < bestN || (n == bestN && cand < best) {
			best, bestN = cand, n
		}
	}
	return best
}

func (c *calendarVerbs) createTask(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) < 3 || len(args) > 4 {
		return nil, NewError(KindInvalidArgument, "CREATE_TASK requires (title, assignee, due[, project_id])")
	}
	ctx := contextFrom(cc)
	now := time.Now()
	due := parseDueDate(toString(args[2]), now)
	assignee := toString(args[1])
	if strings.EqualFold(assignee, "auto") {
		counts, err := c.tasks.OpenCountByAssignee(ctx, c.sc.BotID)
		if err != nil {
			return nil, Wrap(KindUpstream, "CREATE_TASK: load lookup failed", err)
		}
		assignee = leastLoaded(counts, nil)
	}
	var projectID string
	if len(args) == 4 {
		projectID = toString(args[3])
	}
	stored, err := c.tasks.Create(ctx, models.Task{
		BotID: c.sc.BotID, Title: toString(args[0]), Assignee: assignee,
		ProjectID: projectID, DueAt: due, Priority: derivePriority(due, now),
	})
	if err != nil {
		return nil, Wrap(KindUpstream, "CREATE_TASK: create failed", err)
	}
	return map[string]any{
		"id": stored.ID, "assignee": stored.Assignee,
		"priority": string(stored.Priority), "due": stored.DueAt.Format(time.RFC3339),
	}, nil
}

func (c *calendarVerbs) assignSmart(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "ASSIGN_SMART requires (task, team, load_balance)")
	}
	taskID := toString(args[0])
	teamRaw, ok := args[1].([]any)
	if !ok || len(teamRaw) == 0 {
		return nil, NewError(KindInvalidArgument, "ASSIGN_SMART: team must be a non-empty list")
	}
	team := make([]string, len(teamRaw))
	for i, v := range teamRaw {
		team[i] = toString(v)
	}
	loadBalance, _ := args[2].(bool)

	ctx := contextFrom(cc)
	assignee := team[0]
	if loadBalance {
		counts, err := c.tasks.OpenCountByAssignee(ctx, c.sc.BotID)
		if err != nil {
			return nil, Wrap(KindUpstream, "ASSIGN_SMART: load lookup failed", err)
		}
		assignee = leastLoaded(counts, team)
	}
	if err := c.tasks.SetAssignee(ctx, c.sc.BotID, taskID, assignee); err != nil {
		return nil, Wrap(KindNotFound, "ASSIGN_SMART: "+taskID, err)
	}
	return assignee, nil
}

// parseEventTime accepts RFC3339 or a "2006-01-02 15:04" local
// timestamp, grounded on teacher's internal/cron/schedule.go parseAt.
func parseEventTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func (c *calendarVerbs) checkConflict(ctx context.Context, candidate models.CalendarEvent) error {
	existing, err := c.calendar.ListBetween(ctx, c.sc.BotID, candidate.StartTime, candidate.End())
	if err != nil {
		return Wrap(KindUpstream, "checking calendar conflicts failed", err)
	}
	if len(existing) > 0 {
		return NewError(KindInvalidArgument, "requested time conflicts with an existing event")
	}
	return nil
}

func (c *calendarVerbs) book(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 5 {
		return nil, NewError(KindInvalidArgument, "BOOK requires (title, desc, start_time, duration_min, location)")
	}
	start, err := parseEventTime(toString(args[2]))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "BOOK: "+err.Error())
	}
	durationMin, ok := toInt(args[3])
	if !ok || durationMin <= 0 {
		return nil, NewError(KindInvalidArgument, "BOOK: duration_min must be a positive integer")
	}
	candidate := models.CalendarEvent{
		BotID: c.sc.BotID, Title: toString(args[0]), Description: toString(args[1]),
		StartTime: start, DurationMin: durationMin, Location: toString(args[4]),
	}
	ctx := contextFrom(cc)
	if err := c.checkConflict(ctx, candidate); err != nil {
		return nil, err
	}
	stored, err := c.calendar.Create(ctx, candidate)
	if err != nil {
		return nil, Wrap(KindUpstream, "BOOK: create failed", err)
	}
	return fmt.Sprintf("Booked %q for %s (%d min) at %s", stored.Title, stored.StartTime.Format(time.RFC3339), stored.DurationMin, stored.Location), nil
}

func (c *calendarVerbs) bookMeeting(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "BOOK_MEETING requires (details, attendees)")
	}
	details, ok := args[0].(map[string]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "BOOK_MEETING: details must be an object")
	}
	attendeesRaw, ok := args[1].([]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "BOOK_MEETING: attendees must be a list")
	}
	attendees := make([]string, len(attendeesRaw))
	for i, a := range attendeesRaw {
		attendees[i] = toString(a)
	}
	start, err := parseEventTime(toString(details["start_time"]))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "BOOK_MEETING: "+err.Error())
	}
	durationMin, ok := toInt(details["duration_min"])
	if !ok || durationMin <= 0 {
		return nil, NewError(KindInvalidArgument, "BOOK_MEETING: duration_min must be a positive integer")
	}
	candidate := models.CalendarEvent{
		BotID: c.sc.BotID, Title: toString(details["title"]), Description: toString(details["description"]),
		StartTime: start, DurationMin: durationMin, Location: toString(details["location"]), Attendees: attendees,
	}
	ctx := contextFrom(cc)
	if err := c.checkConflict(ctx, candidate); err != nil {
		return nil, err
	}
	stored, err := c.calendar.Create(ctx, candidate)
	if err != nil {
		return nil, Wrap(KindUpstream, "BOOK_MEETING: create failed", err)
	}
	return map[string]any{"id": stored.ID, "start": stored.StartTime.Format(time.RFC3339), "attendees": attendees}, nil
}

func (c *calendarVerbs) checkAvailability(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "CHECK_AVAILABILITY requires (date, duration_min)")
	}
	date, err := time.Parse("2006-01-02", toString(args[0]))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "CHECK_AVAILABILITY: date must be YYYY-MM-DD")
	}
	durationMin, ok := toInt(args[1])
	if !ok || durationMin <= 0 {
		return nil, NewError(KindInvalidArgument, "CHECK_AVAILABILITY: duration_min must be a positive integer")
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), businessStartHour, 0, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), businessEndHour, 0, 0, 0, date.Location())
	need := time.Duration(durationMin) * time.Minute

	events, err := c.calendar.ListBetween(contextFrom(cc), c.sc.BotID, dayStart, dayEnd)
	if err != nil {
		return nil, Wrap(KindUpstream, "CHECK_AVAILABILITY: lookup failed", err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })

	var slots []any
	cursor := dayStart
	for _, ev := range events {
		if ev.StartTime.After(cursor) && ev.StartTime.Sub(cursor) >= need {
			slots = append(slots, cursor.Format(time.RFC3339))
		}
		if ev.End().After(cursor) {
			cursor = ev.End()
		}
	}
	if dayEnd.Sub(cursor) >= need {
		slots = append(slots, cursor.Format(time.RFC3339))
	}
	return slots, nil
}
