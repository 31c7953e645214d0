// Package access implements the access-control gate (spec.md §4.9): the
// sole arbiter of whether a role set may read or write a table, and
// which fields it may see. No data verb may bypass it.
package access

import (
	"context"
	"log/slog"
	"sync"

	"github.com/generalbots/botcore/pkg/models"
)

// Rule is one per-table, per-role permission entry. An empty Fields
// slice on an allowed rule means all fields are permitted, matching
// models.AccessInfo's convention.
type Rule struct {
	Table   string
	Role    string
	Type    models.AccessType
	Fields  []string
	Mask    func(field string, value any) any
}

// RuleStore is the narrow persistence contract the gate consults. A
// single static/in-memory implementation (StaticRules) is provided;
// deployments that need operator-editable rules implement this against
// their own table.
type RuleStore interface {
	RulesFor(ctx context.Context, botID, table string, roles []string) ([]Rule, error)
}

// Gate is the access-control gate. It is the only component permitted to
// decide table access; every data verb routes through CheckTableAccess.
type Gate struct {
	rules  RuleStore
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]models.AccessInfo // per-request only; never reused across requests
}

// NewGate constructs a Gate backed by rules.
func NewGate(rules RuleStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{rules: rules, logger: logger}
}

// CheckTableAccess resolves the broadest permission across roles in
// roleSet for (table, accessType): a role set has access if any role in
// it grants the operation, and the field allowlist is the union of every
// granting role's fields (empty allowlist from any granting role means
// "all fields", which dominates the union).
func (g *Gate) CheckTableAccess(ctx context.Context, botID, table string, accessType models.AccessType, roleSet []string) models.AccessInfo {
	rules, err := g.rules.RulesFor(ctx, botID, table, roleSet)
	if err != nil {
		g.logger.Error("access: rule lookup failed", "bot_id", botID, "table", table, "error", err)
		return models.AccessInfo{Table: table, Type: accessType, Allowed: false, Reason: "rule lookup failed"}
	}

	info := models.AccessInfo{Table: table, Type: accessType}
	fieldSet := map[string]bool{}
	allFields := false
	var mask func(string, any) any
	for _, r := range rules {
		if r.Type != accessType {
			continue
		}
		info.Allowed = true
		if len(r.Fields) == 0 {
			allFields = true
		}
		for _, f := range r.Fields {
			fieldSet[f] = true
		}
		if r.Mask != nil {
			mask = r.Mask
		}
	}
	if !info.Allowed {
		info.Reason = "no rule grants " + string(accessType) + " on " + table + " for roles " + joinRoles(roleSet)
		g.logger.Warn("access: denied", "bot_id", botID, "table", table, "type", accessType, "roles", roleSet)
		return info
	}
	if !allFields {
		fields := make([]string, 0, len(fieldSet))
		for f := range fieldSet {
			fields = append(fields, f)
		}
		info.Fields = fields
	}
	info.MaskField = mask
	return info
}

func joinRoles(roles []string) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += ","
		}
		out += r
	}
	if out == "" {
		return "(none)"
	}
	return out
}
