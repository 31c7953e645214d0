package automation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/generalbots/botcore/internal/store"
	"github.com/generalbots/botcore/pkg/models"
)

// WebhookDispatcher serves /api/<bot>/webhook/<endpoint>, looking up the
// active Webhook declaration for the path and running a synthetic
// session with request metadata bound to variables (spec.md §4.7).
type WebhookDispatcher struct {
	Decls    store.DeclarationStore
	Executor Executor
}

func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	botID, endpoint, ok := parseWebhookPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	decl, ok, err := d.findWebhook(r.Context(), botID, endpoint)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	params := make(map[string]string, len(r.URL.Query()))
	for k := range r.URL.Query() {
		params[k] = r.URL.Query().Get(k)
	}

	sess := &models.UserSession{
		SessionID: fmt.Sprintf("webhook:%s:%s", botID, endpoint),
		UserID:    botID,
		BotID:     botID,
		Channel:   "Automation",
		State:     models.SessionActive,
	}
	vars := map[string]any{
		"method":    r.Method,
		"headers":   headers,
		"params":    params,
		"body":      string(body),
		"path":      r.URL.Path,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	result, err := d.Executor.Execute(r.Context(), sess, decl.ScriptName, vars)
	if err != nil {
		http.Error(w, "webhook execution failed", http.StatusInternalServerError)
		return
	}

	for k, v := range result.Headers {
		w.Header().Set(k, v)
	}
	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(result.Output))
}

func (d *WebhookDispatcher) findWebhook(ctx context.Context, botID, endpoint string) (models.Declaration, bool, error) {
	decls, err := d.Decls.ListActiveByKind(ctx, botID, models.KindWebhook)
	if err != nil {
		return models.Declaration{}, false, err
	}
	for _, decl := range decls {
		if decl.TargetOrEndpoint == endpoint {
			return decl, true, nil
		}
	}
	return models.Declaration{}, false, nil
}

// parseWebhookPath extracts (bot, endpoint) from "/api/<bot>/webhook/<endpoint>".
func parseWebhookPath(p string) (botID, endpoint string, ok bool) {
	p = strings.TrimPrefix(p, "/")
	parts := strings.SplitN(p, "/", 4)
	if len(parts) != 4 || parts[0] != "api" || parts[2] != "webhook" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

