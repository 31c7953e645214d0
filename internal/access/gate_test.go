package access

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/pkg/models"
)

func TestCheckTableAccessDeniesWithoutMatchingRule(t *testing.T) {
	g := NewGate(NewStaticRules(), nil)
	info := g.CheckTableAccess(context.Background(), "bot1", "customers", models.AccessRead, []string{"viewer"})
	if info.Allowed {
		t.Fatal("expected access denied with no rules granted")
	}
	if info.FieldAllowed("email") {
		t.Fatal("denied access must not allow any field")
	}
}

func TestCheckTableAccessRedactsToAllowlist(t *testing.T) {
	rules := NewStaticRules()
	rules.Grant("bot1", Rule{Table: "customers", Role: "viewer", Type: models.AccessRead, Fields: []string{"id", "name"}})
	g := NewGate(rules, nil)
	info := g.CheckTableAccess(context.Background(), "bot1", "customers", models.AccessRead, []string{"viewer"})
	if !info.Allowed {
		t.Fatal("expected access allowed")
	}
	row := map[string]any{"id": "1", "name": "Jane", "email": "jane@example.com"}
	redacted := info.RedactRow(row)
	if _, ok := redacted["email"]; ok {
		t.Fatal("email must be redacted")
	}
	if redacted["name"] != "Jane" {
		t.Fatalf("expected name to survive redaction, got %v", redacted)
	}
}

func TestCheckTableAccessAllFieldsWhenRuleOmitsAllowlist(t *testing.T) {
	rules := NewStaticRules()
	rules.Grant("bot1", Rule{Table: "orders", Role: "admin", Type: models.AccessWrite})
	g := NewGate(rules, nil)
	info := g.CheckTableAccess(context.Background(), "bot1", "orders", models.AccessWrite, []string{"admin"})
	if !info.Allowed || !info.FieldAllowed("anything") {
		t.Fatal("expected unrestricted field access when rule carries no allowlist")
	}
}
