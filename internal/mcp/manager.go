package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/probelabs/probe-agent/internal/tool"
)

// toolPrefix marks tools that route through the multiplexer. The double
// underscore separates the components unambiguously even when server or tool
// names contain single underscores.
const toolPrefix = "mcp__"

// ToolName renders the registry name for a server's tool.
func ToolName(server, toolName string) string {
	return toolPrefix + server + "__" + toolName
}

// SplitToolName decomposes a registry name back into server and tool.
func SplitToolName(name string) (server, toolName string, ok bool) {
	rest, found := strings.CutPrefix(name, toolPrefix)
	if !found {
		return "", "", false
	}
	server, toolName, ok = strings.Cut(rest, "__")
	if !ok || server == "" || toolName == "" {
		return "", "", false
	}
	return server, toolName, true
}

// IsToolName reports whether a registry name belongs to an MCP tool.
func IsToolName(name string) bool {
	_, _, ok := SplitToolName(name)
	return ok
}

// Manager owns the lifecycle of all MCP server connections and the adapters
// registered for their tools.
//
// Concurrency model: state changes are guarded by mu. Network I/O is always
// performed outside the lock so that a slow or hung server cannot block other
// Manager operations (e.g. CloseAll during shutdown). Per-connection call
// ordering is the Client's job, not the Manager's.
type Manager struct {
	mu          sync.Mutex
	clients     map[string]*Client
	serverTools map[string][]string // server name → registered tool names
}

// NewManager creates an empty Manager. No connections are established until
// Initialize is called.
func NewManager() *Manager {
	return &Manager{
		clients:     make(map[string]*Client),
		serverTools: make(map[string][]string),
	}
}

// Initialize connects every enabled server, discovers its tools and registers
// adapters in the registry. Failures are best-effort per server: one broken
// server does not prevent the others from coming up. Returns the number of
// connected servers and the per-server errors.
func (m *Manager) Initialize(ctx context.Context, configs map[string]ServerConfig, registry *tool.Registry) (int, []error) {
	type connResult struct {
		name  string
		cli   *Client
		tools []ToolInfo
		err   error
	}

	// Connect and list outside the lock.
	results := make([]connResult, 0, len(configs))
	for name, cfg := range configs {
		if !cfg.IsEnabled() {
			log.Printf("[MCP] Skipping disabled server: %s", name)
			continue
		}
		cli := NewClient(cfg)
		if err := cli.Connect(ctx); err != nil {
			results = append(results, connResult{name: name, err: err})
			log.Printf("[MCP] Connect failed: %s: %v", name, err)
			continue
		}
		tools, err := cli.ListTools(ctx)
		if err != nil {
			_ = cli.Close()
			results = append(results, connResult{name: name, err: err})
			log.Printf("[MCP] List tools failed: %s: %v", name, err)
			continue
		}
		results = append(results, connResult{name: name, cli: cli, tools: tools})
		log.Printf("[MCP] Connected: %s (%s), %d tool(s)", name, cfg.Transport, len(tools))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	connected := 0
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", r.name, r.err))
			continue
		}
		m.clients[r.name] = r.cli
		var names []string
		for _, ti := range r.tools {
			adapter := NewAdapter(r.name, ti, r.cli)
			registry.Register(adapter)
			names = append(names, adapter.Name())
		}
		m.serverTools[r.name] = names
		connected++
	}
	return connected, errs
}

// Call routes a registry-level tool name to its server connection.
func (m *Manager) Call(ctx context.Context, registryName string, args map[string]any) (string, error) {
	server, toolName, ok := SplitToolName(registryName)
	if !ok {
		return "", fmt.Errorf("mcp: %q is not an MCP tool name", registryName)
	}

	m.mu.Lock()
	cli := m.clients[server]
	m.mu.Unlock()
	if cli == nil {
		return "", fmt.Errorf("mcp: no connected server %q", server)
	}
	return cli.CallTool(ctx, toolName, args)
}

// ServerTools returns the registered tool names per server.
func (m *Manager) ServerTools() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.serverTools))
	for name, tools := range m.serverTools {
		out[name] = append([]string(nil), tools...)
	}
	return out
}

// CloseAll terminates all connections and unregisters their tools from the
// registry (when one is supplied). Idempotent.
func (m *Manager) CloseAll(registry *tool.Registry) {
	m.mu.Lock()
	clients := m.clients
	serverTools := m.serverTools
	m.clients = make(map[string]*Client)
	m.serverTools = make(map[string][]string)
	m.mu.Unlock()

	for name, cli := range clients {
		if registry != nil {
			for _, toolName := range serverTools[name] {
				registry.Unregister(toolName)
			}
		}
		if err := cli.Close(); err != nil {
			log.Printf("[MCP] Close error for %q: %v", name, err)
		}
	}
	if len(clients) > 0 {
		log.Printf("[MCP] All connections closed")
	}
}
