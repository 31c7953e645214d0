package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/generalbots/botcore/pkg/models"
)

// TaskStore is the CREATE_TASK/ASSIGN_SMART contract, grounded on
// teacher's internal/tasks.ScheduledTask shape (id/name/status fields)
// generalized from scheduled-agent-runs to assignable work items.
type TaskStore interface {
	// Create assigns an ID (if empty) and persists t, returning the
	// stored row.
	Create(ctx context.Context, t models.Task) (models.Task, error)

	// SetAssignee reassigns an existing task (ASSIGN_SMART).
	SetAssignee(ctx context.Context, botID, id, assignee string) error

	// OpenCountByAssignee tallies open tasks per assignee for botID, used
	// by CREATE_TASK's "auto" assignee and ASSIGN_SMART's load_balance
	// to pick the least-loaded member (modeled after teacher's
	// MaxConcurrency load-shedding idea in internal/tasks/scheduler.go,
	// applied here to human assignees instead of worker slots).
	OpenCountByAssignee(ctx context.Context, botID string) (map[string]int, error)
}

// MemTaskStore is an in-memory TaskStore.
type MemTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task // botID|id -> task
}

func NewMemTaskStore() *MemTaskStore {
	return &MemTaskStore{tasks: make(map[string]*models.Task)}
}

func taskKey(botID, id string) string { return botID + "|" + id }

func (s *MemTaskStore) Create(_ context.Context, t models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TaskOpen
	}
	cp := t
	s.tasks[taskKey(t.BotID, t.ID)] = &cp
	return cp, nil
}

func (s *MemTaskStore) SetAssignee(_ context.Context, botID, id, assignee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskKey(botID, id)]
	if !ok {
		return fmt.Errorf("store: task %s not found", id)
	}
	t.Assignee = assignee
	return nil
}

func (s *MemTaskStore) OpenCountByAssignee(_ context.Context, botID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, t := range s.tasks {
		if t.BotID != botID || t.Status != models.TaskOpen || t.Assignee == "" {
			continue
		}
		out[t.Assignee]++
	}
	return out, nil
}
