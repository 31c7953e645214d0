// Package models provides the domain types shared across botcore's
// compiler, keyword runtime, scheduler, drive monitor, and tool executor.
package models

import "time"

// CompiledScript is the immutable artifact produced by compiling a .bas
// source file. It is replaced atomically on recompile and never mutated
// in place.
type CompiledScript struct {
	BotID      string
	ScriptName string

	// AST is the program compiled by the expression engine adapter (C1).
	// Its concrete type is engine-specific; callers obtain it back through
	// the same engine that produced it.
	AST any

	// MCPSchema and ToolSchema are the two tool-schema flavors emitted by
	// the declaration harvester (C3) when the source declares PARAMs.
	MCPSchema  *MCPToolSchema
	ToolSchema *FunctionToolSchema

	// SourceHash is the sha256 of the preprocessed source, used to decide
	// whether a recompile is actually needed when the drive monitor sees
	// a changed ETag but byte-identical preprocessed output.
	SourceHash string

	// Diagnostics holds non-fatal compiler notes (e.g. "GOTO lowering
	// applied"), surfaced to operator-visible logs, never to end users.
	Diagnostics []string

	CompiledAt time.Time
}

// MCPToolSchema is the Model Context Protocol flavored tool descriptor
// generated from a script's PARAM/DESCRIPTION lines.
type MCPToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// FunctionToolSchema is the OpenAI-style function-calling flavored tool
// descriptor, generated from the same PARAM/DESCRIPTION lines.
type FunctionToolSchema struct {
	Type     string           `json:"type"`
	Function FunctionToolSpec `json:"function"`
}

// FunctionToolSpec is the nested function body of a FunctionToolSchema.
type FunctionToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ScriptParam is a single PARAM line harvested from a script header.
type ScriptParam struct {
	Name        string
	Type        string // source-level type, pre-normalization
	Example     string
	Description string
}
