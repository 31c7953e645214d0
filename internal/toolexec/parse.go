// Package toolexec implements the tool-call executor (spec.md §4.8):
// it parses an LLM's function-calling payload, locates and compiles the
// matching .bas tool script, binds arguments into its variable scope,
// runs it, and translates any failure into a fixed user-safe message.
package toolexec

import (
	"encoding/json"
	"fmt"
)

// rawToolCall is the bare function-calling descriptor shape.
type rawToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// wrappedToolCall is the {type:"tool_call", content:{...}} envelope.
type wrappedToolCall struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Call is a parsed, ready-to-execute tool invocation.
type Call struct {
	ID        string
	ToolName  string
	Arguments map[string]any
}

// ParseCall accepts the three JSON shapes spec.md §4.8 names: a
// {type:"tool_call", content:{...}} wrapper, a bare function-calling
// descriptor, or an array of either (first element used).
func ParseCall(raw []byte) (Call, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return ParseCall(arr[0])
	}

	var wrapped wrappedToolCall
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Type == "tool_call" && len(wrapped.Content) > 0 {
		return parseDescriptor(wrapped.Content)
	}

	return parseDescriptor(raw)
}

func parseDescriptor(raw json.RawMessage) (Call, error) {
	var desc rawToolCall
	if err := json.Unmarshal(raw, &desc); err != nil {
		return Call{}, fmt.Errorf("toolexec: parse tool call: %w", err)
	}
	if desc.Function.Name == "" {
		return Call{}, fmt.Errorf("toolexec: tool call missing function name")
	}
	args := map[string]any{}
	if desc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(desc.Function.Arguments), &args); err != nil {
			return Call{}, fmt.Errorf("toolexec: parse arguments: %w", err)
		}
	}
	return Call{ID: desc.ID, ToolName: desc.Function.Name, Arguments: args}, nil
}
