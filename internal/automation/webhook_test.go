package automation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/generalbots/botcore/pkg/models"
)

func TestParseWebhookPath(t *testing.T) {
	botID, endpoint, ok := parseWebhookPath("/api/bot1/webhook/orders")
	if !ok || botID != "bot1" || endpoint != "orders" {
		t.Fatalf("got (%q, %q, %v)", botID, endpoint, ok)
	}
	if _, _, ok := parseWebhookPath("/not/a/webhook/path/extra"); ok {
		t.Fatal("expected non-matching path rejected")
	}
}

type fakeWebhookExecutor struct {
	gotVars map[string]any
}

func (f *fakeWebhookExecutor) Execute(_ context.Context, _ *models.UserSession, _ string, vars map[string]any) (ExecResult, error) {
	f.gotVars = vars
	return ExecResult{Output: "handled", Status: http.StatusCreated, Headers: map[string]string{"X-Test": "1"}}, nil
}

func TestWebhookDispatcherServesMatchingDeclaration(t *testing.T) {
	decls := newFakeDeclStore()
	decls.add(models.Declaration{
		ID: "d1", BotID: "bot1", Kind: models.KindWebhook,
		ScriptName: "order_hook", TargetOrEndpoint: "orders", IsActive: true,
	})
	exec := &fakeWebhookExecutor{}
	d := &WebhookDispatcher{Decls: decls, Executor: exec}

	req := httptest.NewRequest(http.MethodPost, "/api/bot1/webhook/orders?ref=42", strings.NewReader(`{"id":1}`))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec.Body.String() != "handled" {
		t.Fatalf("expected body 'handled', got %q", rec.Body.String())
	}
	if rec.Header().Get("X-Test") != "1" {
		t.Fatal("expected header override applied")
	}
	if exec.gotVars["params"].(map[string]string)["ref"] != "42" {
		t.Fatalf("expected query param bound, got %v", exec.gotVars["params"])
	}
}

func TestWebhookDispatcher404sForUnknownEndpoint(t *testing.T) {
	decls := newFakeDeclStore()
	d := &WebhookDispatcher{Decls: decls, Executor: &fakeWebhookExecutor{}}

	req := httptest.NewRequest(http.MethodPost, "/api/bot1/webhook/missing", nil)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
