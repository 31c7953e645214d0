package toolexec

import "testing"

func TestParseCallWrappedShape(t *testing.T) {
	raw := []byte(`{"type":"tool_call","content":{"id":"1","function":{"name":"lookup","arguments":"{\"city\":\"NYC\"}"}}}`)
	call, err := ParseCall(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.ToolName != "lookup" || call.Arguments["city"] != "NYC" {
		t.Fatalf("got %+v", call)
	}
}

func TestParseCallBareDescriptor(t *testing.T) {
	raw := []byte(`{"id":"2","function":{"name":"weather","arguments":"{\"zip\":\"10001\"}"}}`)
	call, err := ParseCall(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.ToolName != "weather" || call.Arguments["zip"] != "10001" {
		t.Fatalf("got %+v", call)
	}
}

func TestParseCallArrayUsesFirstElement(t *testing.T) {
	raw := []byte(`[{"id":"3","function":{"name":"first","arguments":"{}"}},{"id":"4","function":{"name":"second","arguments":"{}"}}]`)
	call, err := ParseCall(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.ToolName != "first" {
		t.Fatalf("expected first element used, got %q", call.ToolName)
	}
}

func TestParseCallMissingFunctionNameErrors(t *testing.T) {
	if _, err := ParseCall([]byte(`{"id":"5","function":{"arguments":"{}"}}`)); err == nil {
		t.Fatal("expected error for missing function name")
	}
}
