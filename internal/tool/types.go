package tool

import (
	"context"
	"encoding/json"
)

// Tool is the unified interface for all tools.
// Both native built-in tools and MCP tool adapters implement this interface.
type Tool interface {
	// Name returns the tool identifier (the model uses this name as the XML
	// tag when invoking the tool). MCP tools carry the mcp__<server>__<tool>
	// prefix form.
	Name() string

	// Description returns a natural-language description for prompt injection.
	Description() string

	// InputSchema returns a standard JSON Schema defining the tool's
	// parameters. Compatible with the MCP protocol.
	InputSchema() json.RawMessage

	// Execute runs the tool with JSON-encoded arguments. Native-dialect
	// arguments arrive as an object of strings; tools convert as needed.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)

	// Init initializes tool resources. Native tools may return nil.
	Init(ctx context.Context) error

	// Close releases tool resources.
	Close() error
}

// Result encapsulates a tool execution result. A non-empty Error means the
// tool failed in a way the model should see and react to; it is not a Go
// error and never terminates the loop.
type Result struct {
	Output string   `json:"output"`
	Error  string   `json:"error,omitempty"`
	Images []string `json:"images,omitempty"` // file paths of images the tool explicitly produced
}

// Kind classifies where a tool implementation comes from.
type Kind string

const (
	KindNative  Kind = "native"
	KindMCP     Kind = "mcp"
	KindBuiltin Kind = "gemini-builtin" // provider-native placeholder, never dispatched
)

// Metadata carries dispatch-relevant flags for a tool. Tools that do not
// implement the Meta interface default to native with all flags false.
type Metadata struct {
	Kind           Kind
	MutatesRepo    bool // tool may modify the repository (e.g. implement)
	ProducesImages bool // tool output may reference image files to attach
	Terminal       bool // tool ends the loop; never executed through Execute
	MaxOutput      int  // per-tool output token limit; 0 = session limit
}

// Meta is an optional interface tools implement to override default metadata.
type Meta interface {
	Metadata() Metadata
}

// MetadataOf returns the tool's metadata, defaulting to a plain native tool.
func MetadataOf(t Tool) Metadata {
	if m, ok := t.(Meta); ok {
		return m.Metadata()
	}
	return Metadata{Kind: KindNative}
}

// SchemaParam describes a single parameter for the BuildSchema helper.
type SchemaParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string", "integer", "boolean", "number"
	Description string   `json:"description"`
	Required    bool     `json:"-"`
	Enum        []string `json:"enum,omitempty"`
}

// BuildSchema generates a standard JSON Schema object from a list of
// SchemaParams. This helper lets native tools avoid hand-writing JSON.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any)
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, _ := json.Marshal(schema)
	return data
}
