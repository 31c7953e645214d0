package keywords

import (
	"context"
	"testing"

	"github.com/generalbots/botcore/internal/access"
	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

type fakeSchemaReader struct {
	schemas map[string]models.TableSchema
}

func (f *fakeSchemaReader) GetSchema(_ context.Context, botID, table string) (models.TableSchema, bool, error) {
	s, ok := f.schemas[botID+"|"+table]
	return s, ok, nil
}

type fakeHTTPDeleter struct {
	gotURL string
}

func (f *fakeHTTPDeleter) Delete(_ context.Context, url string) (expr.Value, error) {
	f.gotURL = url
	return map[string]any{"status": float64(204)}, nil
}

func newDataEngine(t *testing.T, roles []string) (*expr.Engine, *store.MemRowStore, *fakeSchemaReader, *fakeHTTPDeleter) {
	t.Helper()
	rules := access.NewStaticRules()
	rules.Grant("bot1", access.Rule{Table: "customers", Role: "admin", Type: models.AccessRead})
	rules.Grant("bot1", access.Rule{Table: "customers", Role: "admin", Type: models.AccessWrite})
	rules.Grant("bot1", access.Rule{Table: "customers", Role: "viewer", Type: models.AccessRead, Fields: []string{"id", "name"}})
	gate := access.NewGate(rules, nil)

	rows := store.NewMemRowStore()
	schemas := &fakeSchemaReader{schemas: map[string]models.TableSchema{
		"bot1|customers": {
			BotID: "bot1", Name: "customers",
			Columns: []models.TableColumn{{Name: "name"}, {Name: "email"}},
		},
	}}
	http := &fakeHTTPDeleter{}

	e := expr.NewEngine()
	sc := SessionContext{BotID: "bot1", SessionID: "s1", Roles: roles}
	if err := RegisterData(e, sc, gate, rows, schemas, http); err != nil {
		t.Fatalf("register data verbs: %v", err)
	}
	return e, rows, schemas, http
}

func run(t *testing.T, e *expr.Engine, src string) expr.Value {
	t.Helper()
	p, err := e.Compile(src)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	v, err := e.Eval(p)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return v
}

func TestFindDeniesWithoutGrantedRole(t *testing.T) {
	e, _, _, _ := newDataEngine(t, []string{"stranger"})
	p, err := e.Compile(`FIND("customers", "")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(p); err == nil {
		t.Fatal("expected access denied error")
	}
}

func TestFindRedactsFieldsForViewerRole(t *testing.T) {
	e, rows, _, _ := newDataEngine(t, []string{"viewer"})
	if _, err := rows.Insert(context.Background(), "bot1", "customers", map[string]any{"id": "1", "name": "Jane", "email": "jane@example.com"}); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	v := run(t, e, `FIND("customers", "")`)
	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one row, got %#v", v)
	}
	row := list[0].(map[string]any)
	if _, ok := row["email"]; ok {
		t.Fatal("email must be redacted for viewer role")
	}
	if row["name"] != "Jane" {
		t.Fatalf("expected name to survive redaction, got %#v", row)
	}
}

func TestSaveStructuredShapeUpsertsById(t *testing.T) {
	e, rows, _, _ := newDataEngine(t, []string{"admin"})
	run(t, e, `SAVE("customers", "42", {"name": "Ada", "email": "ada@example.com"})`)
	found, err := rows.Find(context.Background(), "bot1", "customers", &store.Clause{Field: "id", Op: "=", Value: "42"})
	if err != nil || len(found) != 1 {
		t.Fatalf("expected row 42 to exist, got %v / %v", found, err)
	}
	run(t, e, `SAVE("customers", "42", {"name": "Ada Lovelace", "email": "ada@example.com"})`)
	found, _ = rows.Find(context.Background(), "bot1", "customers", &store.Clause{Field: "id", Op: "=", Value: "42"})
	if len(found) != 1 || found[0]["name"] != "Ada Lovelace" {
		t.Fatalf("expected in-place update, got %#v", found)
	}
}

func TestSavePositionalShapeBindsDeclarationOrder(t *testing.T) {
	e, rows, _, _ := newDataEngine(t, []string{"admin"})
	run(t, e, `SAVE("customers", "Grace", "grace@example.com")`)
	found, err := rows.Find(context.Background(), "bot1", "customers", nil)
	if err != nil || len(found) != 1 {
		t.Fatalf("expected one row, got %v / %v", found, err)
	}
	if found[0]["name"] != "Grace" || found[0]["email"] != "grace@example.com" {
		t.Fatalf("expected positional binding by declared column order, got %#v", found[0])
	}
}

func TestDeleteRoutesURLShapedArgumentToHTTP(t *testing.T) {
	e, _, _, httpd := newDataEngine(t, []string{"admin"})
	run(t, e, `DELETE("https://example.com/widgets/1")`)
	if httpd.gotURL != "https://example.com/widgets/1" {
		t.Fatalf("expected HTTP DELETE to be invoked, got %q", httpd.gotURL)
	}
}

func TestDeleteTableFormRemovesMatchingRows(t *testing.T) {
	e, rows, _, _ := newDataEngine(t, []string{"admin"})
	if _, err := rows.Insert(context.Background(), "bot1", "customers", map[string]any{"id": "1", "name": "Jane"}); err != nil {
		t.Fatal(err)
	}
	n := run(t, e, `DELETE("customers", "id = 1")`)
	if n != int64(1) {
		t.Fatalf("expected 1 row deleted, got %#v", n)
	}
	remaining, _ := rows.Find(context.Background(), "bot1", "customers", nil)
	if len(remaining) != 0 {
		t.Fatalf("expected table empty, got %#v", remaining)
	}
}

func TestAggregateSumAndAvg(t *testing.T) {
	e, _, _, _ := newDataEngine(t, []string{"admin"})
	v := run(t, e, `AGGREGATE("SUM", [{"amount": 10}, {"amount": 20}], "amount")`)
	if v != int64(30) {
		t.Fatalf("expected sum 30, got %#v", v)
	}
	v = run(t, e, `AGGREGATE("AVG", [{"amount": 10}, {"amount": 20}], "amount")`)
	if v != int64(15) {
		t.Fatalf("expected avg 15, got %#v", v)
	}
}

func TestGroupByGroupsRowsByField(t *testing.T) {
	e, _, _, _ := newDataEngine(t, []string{"admin"})
	v := run(t, e, `GROUP_BY([{"team": "a", "n": 1}, {"team": "b", "n": 2}, {"team": "a", "n": 3}], "team")`)
	groups, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected a map of groups, got %#v", v)
	}
	a, ok := groups["a"].([]any)
	if !ok || len(a) != 2 {
		t.Fatalf("expected team a to have 2 rows, got %#v", groups["a"])
	}
}

func TestJoinInnerJoinsOnKey(t *testing.T) {
	e, _, _, _ := newDataEngine(t, []string{"admin"})
	v := run(t, e, `JOIN([{"id": 1, "name": "Jane"}], [{"id": 1, "dept": "Eng"}], "id")`)
	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one joined row, got %#v", v)
	}
	row := list[0].(map[string]any)
	if row["name"] != "Jane" || row["dept"] != "Eng" {
		t.Fatalf("expected merged fields, got %#v", row)
	}
}
