package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// wsWire speaks JSON-RPC 2.0 over a websocket. The MCP methods it needs are
// initialize, notifications/initialized, tools/list and tools/call. Requests
// are strictly sequential — the Client's mutex guarantees that — so responses
// can be matched by reading until the expected id appears, skipping any
// server-initiated notifications in between.
type wsWire struct {
	server string
	conn   *websocket.Conn
	nextID atomic.Int64
}

func dialWS(ctx context.Context, server, url string) (*wsWire, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: dial ws server %q at %s: %w", server, url, err)
	}
	return &wsWire{server: server, conn: conn}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// call sends one request and reads frames until its response arrives.
func (w *wsWire) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := w.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetReadDeadline(deadline)
		_ = w.conn.SetWriteDeadline(deadline)
	}

	if err := w.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("mcp: ws write to %q: %w", w.server, err)
	}

	for {
		var resp rpcResponse
		if err := w.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("mcp: ws read from %q: %w", w.server, err)
		}
		// Notifications and stale responses are skipped.
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("mcp: ws %s on %q: %w", method, w.server, resp.Error)
		}
		return resp.Result, nil
	}
}

// notify sends a request without an id and does not await a response.
func (w *wsWire) notify(method string, params any) error {
	return w.conn.WriteJSON(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (w *wsWire) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "probe-agent",
			"version": "0.1.0",
		},
	}
	if _, err := w.call(ctx, "initialize", params); err != nil {
		return err
	}
	return w.notify("notifications/initialized", nil)
}

func (w *wsWire) ListTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := w.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("mcp: ws tools/list decode from %q: %w", w.server, err)
	}
	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return tools, nil
}

func (w *wsWire) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	raw, err := w.call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("mcp: ws tools/call decode from %q: %w", w.server, err)
	}
	var text string
	for _, c := range result.Content {
		if c.Type != "text" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += c.Text
	}
	if result.IsError {
		return "", &ToolError{Server: w.server, Tool: name, Text: text}
	}
	return text, nil
}

func (w *wsWire) Close() error {
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}
