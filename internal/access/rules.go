package access

import (
	"context"
	"sync"

	"github.com/generalbots/botcore/pkg/models"
)

// StaticRules is an in-process RuleStore backed by a per-bot rule list,
// configured at startup (or by an operator tool) rather than edited by
// scripts. Grounded on the teacher's allow/deny decision struct with a
// reason code that is logged but never returned to the caller.
type StaticRules struct {
	mu    sync.RWMutex
	rules map[string][]Rule // botID -> rules
}

// NewStaticRules constructs an empty StaticRules.
func NewStaticRules() *StaticRules {
	return &StaticRules{rules: make(map[string][]Rule)}
}

// Grant adds a rule for botID. Later grants widen access (union), they
// never narrow an earlier grant.
func (s *StaticRules) Grant(botID string, r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[botID] = append(s.rules[botID], r)
}

func (s *StaticRules) RulesFor(_ context.Context, botID, table string, roles []string) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	var out []Rule
	for _, r := range s.rules[botID] {
		if r.Table != table {
			continue
		}
		if !roleSet[r.Role] && r.Role != "*" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ModelsAccessType re-exports models.AccessType's two constants for
// callers that only import this package.
var (
	Read  = models.AccessRead
	Write = models.AccessWrite
)
