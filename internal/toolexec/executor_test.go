package toolexec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/pkg/models"
)

func newBareEngine(*models.UserSession) (*expr.Engine, error) {
	return expr.NewEngine(), nil
}

func TestExecutorRunsScriptAndBindsArguments(t *testing.T) {
	workRoot := t.TempDir()
	writeScript(t, workRoot, "bot1", "greet", "name;")

	r := &ScriptResolver{WorkRoot: workRoot}
	x := NewExecutor(r, newBareEngine, workRoot)

	sess := &models.UserSession{BotID: "bot1", SessionID: "s1"}
	raw := []byte(`{"id":"1","function":{"name":"greet","arguments":"{\"name\":\"Ada\"}"}}`)

	out, err := x.Execute(context.Background(), sess, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Ada" {
		t.Fatalf("expected bound argument echoed back, got %q", out)
	}
}

func TestExecutorNotFoundReturnsUserSafeMessage(t *testing.T) {
	workRoot := t.TempDir()
	r := &ScriptResolver{WorkRoot: workRoot}
	x := NewExecutor(r, newBareEngine, workRoot)

	sess := &models.UserSession{BotID: "bot1", SessionID: "s1"}
	raw := []byte(`{"id":"1","function":{"name":"missing","arguments":"{}"}}`)

	_, err := x.Execute(context.Background(), sess, raw)
	if err == nil || err.Error() != "tool not available" {
		t.Fatalf("expected 'tool not available', got %v", err)
	}

	logPath := filepath.Join(workRoot, "bot1_tool_errors.log")
	data, readErr := os.ReadFile(logPath)
	if readErr != nil {
		t.Fatalf("expected error log written: %v", readErr)
	}
	if !strings.Contains(string(data), "TOOL: missing") {
		t.Fatalf("expected log entry naming the tool, got %q", data)
	}
}

func TestExecutorCompileFailureReturnsGenericMessage(t *testing.T) {
	workRoot := t.TempDir()
	writeScript(t, workRoot, "bot1", "broken", "((( not valid js")

	r := &ScriptResolver{WorkRoot: workRoot}
	x := NewExecutor(r, newBareEngine, workRoot)

	sess := &models.UserSession{BotID: "bot1", SessionID: "s1"}
	raw := []byte(`{"id":"1","function":{"name":"broken","arguments":"{}"}}`)

	_, err := x.Execute(context.Background(), sess, raw)
	if err == nil || err.Error() != "we encountered an error processing your request" {
		t.Fatalf("expected compile-failure message, got %v", err)
	}
}
