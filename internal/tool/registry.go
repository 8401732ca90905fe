package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Registry manages all registered tools with thread-safe access. MCP
// reconnects register and unregister tools mid-session; the parser resolves
// names through Known at call time, so the registry is the single source of
// truth for what the model may invoke.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. If a tool with the same name already
// exists, it is overwritten and a warning is logged.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		log.Printf("[Registry] WARNING: overwriting existing tool %q", t.Name())
	}
	r.tools[t.Name()] = t
}

// Unregister removes a tool from the registry (for MCP reconnects).
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	log.Printf("[Registry] Unregistered tool: %s", name)
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Known reports whether name is a registered tool. The parser uses this at
// call time so tools registered mid-session (MCP reconnect) are recognised.
func (r *Registry) Known(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// IsMCP reports whether the named tool uses the <params> JSON dialect.
func (r *Registry) IsMCP(name string) bool {
	t, ok := r.Get(name)
	if !ok {
		return false
	}
	return MetadataOf(t).Kind == KindMCP
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Enabled returns the tools that pass the given allowed-set filter.
// A nil filter means everything is enabled.
func (r *Registry) Enabled(allowed *AllowedSet) []Tool {
	tools := r.List()
	if allowed == nil {
		return tools
	}
	out := tools[:0:0]
	for _, t := range tools {
		if allowed.IsEnabled(t.Name()) {
			out = append(out, t)
		}
	}
	return out
}

// RenderToolsSection produces the system-prompt description of every enabled
// tool: a "## Available Tools" index followed by one section per tool with a
// parameter table and an XML usage example in the tool's dialect.
func (r *Registry) RenderToolsSection(allowed *AllowedSet) string {
	tools := r.Enabled(allowed)
	if len(tools) == 0 {
		return "## Available Tools\n\n(no tools enabled)\n"
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- `%s` — %s\n", t.Name(), firstLine(t.Description())))
	}
	sb.WriteString("\n")

	for _, t := range tools {
		sb.WriteString(renderToolSection(t))
	}
	return sb.String()
}

// renderToolSection renders one "## <name>" block.
func renderToolSection(t Tool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", t.Name(), t.Description()))

	params := schemaParams(t.InputSchema())
	if len(params) > 0 {
		sb.WriteString("Parameters:\n\n")
		sb.WriteString("| Name | Type | Required | Description |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, p := range params {
			req := "no"
			if p.Required {
				req = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", p.Name, p.Type, req, p.Description))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Usage:\n\n```\n")
	if MetadataOf(t).Kind == KindMCP {
		sb.WriteString(fmt.Sprintf("<%s>\n<params>\n%s\n</params>\n</%s>\n", t.Name(), exampleJSON(params), t.Name()))
	} else {
		sb.WriteString(fmt.Sprintf("<%s>", t.Name()))
		for _, p := range params {
			if !p.Required {
				continue
			}
			sb.WriteString(fmt.Sprintf("<%s>...</%s>", p.Name, p.Name))
		}
		sb.WriteString(fmt.Sprintf("</%s>\n", t.Name()))
	}
	sb.WriteString("```\n\n")
	return sb.String()
}

// schemaParams flattens a JSON Schema object into an ordered parameter list
// (required first, then alphabetical).
func schemaParams(schema json.RawMessage) []SchemaParam {
	if len(schema) == 0 {
		return nil
	}
	var doc struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil
	}

	required := make(map[string]bool, len(doc.Required))
	for _, name := range doc.Required {
		required[name] = true
	}

	params := make([]SchemaParam, 0, len(doc.Properties))
	for name, prop := range doc.Properties {
		params = append(params, SchemaParam{
			Name:        name,
			Type:        prop.Type,
			Description: prop.Description,
			Required:    required[name],
		})
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})
	return params
}

// exampleJSON renders a minimal JSON example object for MCP usage blocks.
func exampleJSON(params []SchemaParam) string {
	if len(params) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if !p.Required {
			continue
		}
		switch p.Type {
		case "integer", "number":
			parts = append(parts, fmt.Sprintf("%q: 0", p.Name))
		case "boolean":
			parts = append(parts, fmt.Sprintf("%q: false", p.Name))
		default:
			parts = append(parts, fmt.Sprintf("%q: \"...\"", p.Name))
		}
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// InitAll initializes all registered tools.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, t := range r.tools {
		if err := t.Init(ctx); err != nil {
			return fmt.Errorf("init tool %q: %w", name, err)
		}
	}
	log.Printf("[Registry] Initialized %d tools", len(r.tools))
	return nil
}

// CloseAll closes all registered tools, logging errors but not failing.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, t := range r.tools {
		if err := t.Close(); err != nil {
			log.Printf("[Registry] Error closing tool %s: %v", name, err)
		}
	}
}
