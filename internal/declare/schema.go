package declare

import (
	"strings"

	"github.com/generalbots/botcore/pkg/models"
)

// NormalizeParamType maps a PARAM's source-level type to the JSON
// Schema primitive used by both tool-schema flavors, per spec.md §4.3.
func NormalizeParamType(sourceType string) string {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case "string", "text":
		return "string"
	case "integer", "int", "number":
		return "integer"
	case "float", "double", "decimal":
		return "number"
	case "boolean", "bool":
		return "boolean"
	case "date", "datetime":
		return "string"
	case "array", "list":
		return "array"
	case "object", "map":
		return "object"
	default:
		return "string"
	}
}

// BuildToolSchemas generates the MCP-flavored and function-calling
// flavored tool descriptors for a script from its harvested DESCRIPTION
// and PARAM lines. Every param is required in both flavors, matching
// spec.md §4.3's "both list every PARAM in required".
func BuildToolSchemas(scriptName, description string, params []models.ScriptParam) (*models.MCPToolSchema, *models.FunctionToolSchema) {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))

	for _, p := range params {
		prop := map[string]any{
			"type":        NormalizeParamType(p.Type),
			"description": p.Description,
		}
		if p.Example != "" {
			prop["example"] = p.Example
		}
		properties[p.Name] = prop
		required = append(required, p.Name)
	}

	inputSchema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}

	mcp := &models.MCPToolSchema{
		Name:        scriptName,
		Description: description,
		InputSchema: inputSchema,
	}

	fn := &models.FunctionToolSchema{
		Type: "function",
		Function: models.FunctionToolSpec{
			Name:        scriptName,
			Description: description,
			Parameters:  inputSchema,
		},
	}

	return mcp, fn
}
