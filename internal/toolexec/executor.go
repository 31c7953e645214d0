package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/internal/preprocess"
	"github.com/generalbots/botcore/pkg/models"
)

// failureKind discriminates the fixed user-safe error taxonomy spec.md
// §4.8 names.
type failureKind int

const (
	failureGeneric failureKind = iota
	failureCompile
	failureExecution
	failureNotFound
)

var userMessages = map[failureKind]string{
	failureGeneric:   "we encountered an error processing your request",
	failureCompile:   "we encountered an error processing your request",
	failureExecution: "the tool encountered a problem",
	failureNotFound:  "tool not available",
}

// EngineFactory builds a fresh expr.Engine with the keyword verb table
// already registered for one execution, bound to the supplied session.
type EngineFactory func(sess *models.UserSession) (*expr.Engine, error)

// Executor runs a single tool call end to end (spec.md §4.8).
type Executor struct {
	Resolver  *ScriptResolver
	NewEngine EngineFactory
	WorkRoot  string
	nowFunc   func() time.Time
}

// NewExecutor builds an Executor. nowFunc defaults to time.Now; tests
// may override it to pin the error-log timestamp.
func NewExecutor(resolver *ScriptResolver, newEngine EngineFactory, workRoot string) *Executor {
	return &Executor{Resolver: resolver, NewEngine: newEngine, WorkRoot: workRoot, nowFunc: time.Now}
}

// Execute parses raw as a tool call, runs it against sess's bot, and
// returns the user-safe result or error message. The returned error is
// always a plain error wrapping a user-safe string; callers should
// surface err.Error() to the end user directly, never the underlying
// cause.
func (x *Executor) Execute(ctx context.Context, sess *models.UserSession, raw []byte) (string, error) {
	call, err := ParseCall(raw)
	if err != nil {
		x.logFailure(sess.BotID, "unknown", err)
		return "", errors.New(userMessages[failureGeneric])
	}

	source, err := x.Resolver.Find(sess.BotID, call.ToolName)
	if err != nil {
		x.logFailure(sess.BotID, call.ToolName, err)
		var nf *ErrToolNotFound
		if errors.As(err, &nf) {
			return "", errors.New(userMessages[failureNotFound])
		}
		return "", errors.New(userMessages[failureGeneric])
	}

	result, err := preprocess.Preprocess(sess.BotID, call.ToolName, source)
	if err != nil {
		x.logFailure(sess.BotID, call.ToolName, err)
		return "", errors.New(userMessages[failureCompile])
	}

	engine, err := x.NewEngine(sess)
	if err != nil {
		x.logFailure(sess.BotID, call.ToolName, err)
		return "", errors.New(userMessages[failureGeneric])
	}

	for key, value := range call.Arguments {
		if err := engine.SetVariable(key, coerceArgument(value)); err != nil {
			x.logFailure(sess.BotID, call.ToolName, err)
			return "", errors.New(userMessages[failureGeneric])
		}
	}

	program, err := engine.Compile(result.Source)
	if err != nil {
		x.logFailure(sess.BotID, call.ToolName, err)
		return "", errors.New(userMessages[failureCompile])
	}

	value, err := engine.Eval(program)
	if err != nil {
		x.logFailure(sess.BotID, call.ToolName, err)
		return "", errors.New(userMessages[failureExecution])
	}

	return stringifyResult(value), nil
}

// coerceArgument renders a JSON-decoded argument value per spec.md
// §4.8's binding rule: literal for strings, decimal string for
// numbers, "true"/"false" for booleans, stringified JSON otherwise.
func coerceArgument(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

func stringifyResult(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

// logFailure appends one line to work/<bot>_tool_errors.log, per
// spec.md §4.8's per-bot append-only error log.
func (x *Executor) logFailure(botID, tool string, cause error) {
	now := time.Now
	if x.nowFunc != nil {
		now = x.nowFunc
	}
	line := fmt.Sprintf("[%s] TOOL: %s | ERROR: %v\n", now().UTC().Format(time.RFC3339), tool, cause)

	path := filepath.Join(x.WorkRoot, botID+"_tool_errors.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}
