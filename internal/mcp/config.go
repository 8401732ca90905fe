// Package mcp multiplexes connections to external Model Context Protocol
// servers and exposes their tools to the registry under mcp__<server>__<tool>
// names.
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// EnvConfigPath names the environment variable that overrides config discovery.
const EnvConfigPath = "MCP_CONFIG_PATH"

// DefaultTimeoutSeconds bounds a single tools/call round-trip.
const DefaultTimeoutSeconds = 30

// ServerConfig describes one MCP server connection. The Name field is
// populated from the map key in the config file, not from a JSON field.
type ServerConfig struct {
	Name       string            `json:"-"`
	Transport  string            `json:"transport,omitempty"` // "stdio" | "ws" | "sse" | "http"
	Command    string            `json:"command,omitempty"`   // stdio: executable path
	Args       []string          `json:"args,omitempty"`      // stdio: command arguments
	URL        string            `json:"url,omitempty"`       // ws/sse/http: endpoint
	Env        map[string]string `json:"env,omitempty"`       // stdio: extra environment variables
	Enabled    *bool             `json:"enabled,omitempty"`   // nil means enabled
	Timeout    int               `json:"timeout,omitempty"`   // seconds per tools/call
	RetryCount int               `json:"retryCount,omitempty"`
}

// IsEnabled treats a missing enabled field as true.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CallTimeout returns the per-call timeout with the default applied.
func (c ServerConfig) CallTimeout() int {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeoutSeconds
}

// EnvSlice renders the env map as KEY=VALUE pairs for subprocess spawning.
func (c ServerConfig) EnvSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}

// configFile mirrors the top-level structure of the config JSON, which is the
// same shape Claude Desktop uses.
type configFile struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// LoadConfig reads and parses an MCP config file. Each server's Name is
// filled from its map key; a missing transport defaults to stdio when a
// command is set and sse when only a URL is set.
func LoadConfig(path string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mcp: read config %q: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("mcp: parse config %q: %w", path, err)
	}
	if file.MCPServers == nil {
		return map[string]ServerConfig{}, nil
	}

	for key, cfg := range file.MCPServers {
		cfg.Name = key
		if cfg.Transport == "" {
			if cfg.Command != "" {
				cfg.Transport = "stdio"
			} else {
				cfg.Transport = "sse"
			}
		}
		file.MCPServers[key] = cfg
	}
	return file.MCPServers, nil
}

// DiscoverConfigPath returns the first MCP config file that exists, checking
// the env var, project-local paths, user paths, and the Claude Desktop
// location, in that order.
func DiscoverConfigPath() (string, bool) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, fileExists(p)
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(".mcp", "config.json"),
		"mcp.config.json",
		filepath.Join(home, ".config", "probe", "mcp.json"),
		filepath.Join(home, ".mcp", "config.json"),
	}
	if p := claudeConfigPath(home); p != "" {
		candidates = append(candidates, p)
	}

	for _, p := range candidates {
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

// claudeConfigPath returns the Claude Desktop config location for the
// current platform.
func claudeConfigPath(home string) string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "Claude", "claude_desktop_config.json")
		}
		return ""
	default:
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
