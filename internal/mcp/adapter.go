package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/probelabs/probe-agent/internal/tool"
)

// caller is the slice of Client an adapter needs; narrowed for tests.
type caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Adapter bridges one MCP server tool to the tool.Tool interface, making it
// indistinguishable from native tools to the agent loop. The registry name is
// mcp__<server>__<tool>; the model passes arguments as a single JSON object
// inside a <params> element, which the parser has already decoded into args
// by the time Execute runs.
type Adapter struct {
	serverName string
	info       ToolInfo
	client     caller
}

// NewAdapter creates an adapter for a single MCP tool.
func NewAdapter(serverName string, info ToolInfo, client caller) *Adapter {
	return &Adapter{serverName: serverName, info: info, client: client}
}

func (a *Adapter) Name() string {
	return ToolName(a.serverName, a.info.Name)
}

func (a *Adapter) Description() string {
	return a.info.Description
}

func (a *Adapter) InputSchema() json.RawMessage {
	if len(a.info.InputSchema) == 0 {
		return tool.BuildSchema()
	}
	return a.info.InputSchema
}

// Execute deserialises the JSON args and delegates to the server connection.
// Infrastructure errors and MCP tool-level errors both come back as a
// Result.Error (nil Go error) so the model can react instead of the loop
// dying.
func (a *Adapter) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var params map[string]any
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &params); err != nil {
			return tool.Result{
				Error: fmt.Sprintf("mcp adapter: parse args for %q: %v", a.Name(), err),
			}, nil
		}
	}

	text, err := a.client.CallTool(ctx, a.info.Name, params)
	if err != nil {
		return tool.Result{Error: err.Error()}, nil
	}
	return tool.Result{Output: text}, nil
}

// Init satisfies tool.Tool. Connection lifecycle is the Manager's job.
func (a *Adapter) Init(_ context.Context) error { return nil }

// Close satisfies tool.Tool. Adapters do not close the shared connection.
func (a *Adapter) Close() error { return nil }

// Metadata marks the adapter as MCP-sourced so the dispatcher applies the
// <params> JSON argument dialect and the mcp__ permission rules.
func (a *Adapter) Metadata() tool.Metadata {
	return tool.Metadata{Kind: tool.KindMCP}
}
