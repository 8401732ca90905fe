package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
)

// ToolInfo captures the metadata of a single tool exposed by an MCP server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolError is a tool-level failure reported by the server (IsError on the
// result). It is the model's problem, not the transport's: the client never
// reconnects for it.
type ToolError struct {
	Server string
	Tool   string
	Text   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp: tool %q on %q returned error: %s", e.Tool, e.Server, e.Text)
}

// wire is the transport-level surface a connection provides. stdio, sse and
// http ride the mcp-go SDK; ws is implemented in this package.
type wire interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Client manages one MCP server connection. Calls through a Client are
// serialised with a mutex: single-stream transports (stdio, ws) cannot
// interleave requests, so the mutex doubles as the per-connection FIFO queue.
// Calls to different servers run on different Clients and may overlap freely.
type Client struct {
	cfg  ServerConfig
	dial func(ctx context.Context) (wire, error)

	mu sync.Mutex
	w  wire
}

// NewClient creates an unconnected Client. Call Connect before use.
func NewClient(cfg ServerConfig) *Client {
	c := &Client{cfg: cfg}
	c.dial = c.dialTransport
	return c
}

// Connect opens the transport and performs the MCP initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	w, err := c.dial(ctx)
	if err != nil {
		return err
	}
	if err := w.Initialize(ctx); err != nil {
		_ = w.Close()
		return fmt.Errorf("mcp: initialize server %q: %w", c.cfg.Name, err)
	}
	c.mu.Lock()
	c.w = w
	c.mu.Unlock()
	return nil
}

func (c *Client) dialTransport(ctx context.Context) (wire, error) {
	switch c.cfg.Transport {
	case "stdio":
		cli, err := sdk_client.NewStdioMCPClient(c.cfg.Command, c.cfg.EnvSlice(), c.cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("mcp: start stdio server %q: %w", c.cfg.Name, err)
		}
		return &sdkWire{server: c.cfg.Name, inner: cli}, nil

	case "sse":
		cli, err := sdk_client.NewSSEMCPClient(c.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mcp: create SSE client %q: %w", c.cfg.Name, err)
		}
		if err := cli.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcp: start SSE client %q: %w", c.cfg.Name, err)
		}
		return &sdkWire{server: c.cfg.Name, inner: cli}, nil

	case "http":
		cli, err := sdk_client.NewStreamableHttpClient(c.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mcp: create HTTP client %q: %w", c.cfg.Name, err)
		}
		if err := cli.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcp: start HTTP client %q: %w", c.cfg.Name, err)
		}
		return &sdkWire{server: c.cfg.Name, inner: cli}, nil

	case "ws":
		return dialWS(ctx, c.cfg.Name, c.cfg.URL)

	default:
		return nil, fmt.Errorf("mcp: unknown transport %q for server %q", c.cfg.Transport, c.cfg.Name)
	}
}

// ListTools returns metadata for all tools exposed by this server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil, fmt.Errorf("mcp: client %q not connected", c.cfg.Name)
	}
	return c.w.ListTools(ctx)
}

// CallTool forwards tools/call and returns the concatenated text payload.
// A transport failure triggers exactly one reconnect-and-retry; tool-level
// errors (*ToolError) are returned as-is without touching the connection.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return "", fmt.Errorf("mcp: client %q not connected", c.cfg.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.CallTimeout())*time.Second)
	defer cancel()

	text, err := c.w.CallTool(callCtx, name, args)
	if err == nil {
		return text, nil
	}
	if _, isTool := err.(*ToolError); isTool {
		return "", err
	}

	// Transport failure: rebuild the connection once and retry.
	_ = c.w.Close()
	c.w = nil
	w, derr := c.dial(ctx)
	if derr != nil {
		return "", fmt.Errorf("mcp: call %q on %q failed (%v) and reconnect failed: %w", name, c.cfg.Name, err, derr)
	}
	if ierr := w.Initialize(ctx); ierr != nil {
		_ = w.Close()
		return "", fmt.Errorf("mcp: call %q on %q failed (%v) and re-handshake failed: %w", name, c.cfg.Name, err, ierr)
	}
	c.w = w

	retryCtx, cancelRetry := context.WithTimeout(ctx, time.Duration(c.cfg.CallTimeout())*time.Second)
	defer cancelRetry()
	return c.w.CallTool(retryCtx, name, args)
}

// Close terminates the connection. Safe to call on an unconnected client.
func (c *Client) Close() error {
	c.mu.Lock()
	w := c.w
	c.w = nil
	c.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// ── SDK-backed wire ──

// sdkWire adapts an mcp-go client to the wire interface.
type sdkWire struct {
	server string
	inner  sdk_client.MCPClient
}

func (s *sdkWire) Initialize(ctx context.Context) error {
	_, err := s.inner.Initialize(ctx, sdk_mcp.InitializeRequest{
		Params: sdk_mcp.InitializeParams{
			ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdk_mcp.Implementation{
				Name:    "probe-agent",
				Version: "0.1.0",
			},
		},
	})
	return err
}

func (s *sdkWire) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := s.inner.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools %q: %w", s.server, err)
	}
	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

func (s *sdkWire) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := s.inner.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp: call tool %q on %q: %w", name, s.server, err)
	}

	text := collectText(result)
	if result.IsError {
		return "", &ToolError{Server: s.server, Tool: name, Text: text}
	}
	return text, nil
}

func (s *sdkWire) Close() error { return s.inner.Close() }

// collectText concatenates the text content blocks of a call result.
func collectText(result *sdk_mcp.CallToolResult) string {
	var text string
	for _, content := range result.Content {
		if tc, ok := content.(sdk_mcp.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}
