package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/probelabs/probe-agent/internal/tool"
)

// ── Config ──

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	content := `{
		"mcpServers": {
			"fs": {"command": "mcp-fs", "args": ["--root", "/tmp"], "env": {"DEBUG": "1"}},
			"remote": {"url": "https://example.com/sse"},
			"sock": {"transport": "ws", "url": "ws://localhost:9000", "timeout": 5},
			"off": {"command": "x", "enabled": false}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(configs) != 4 {
		t.Fatalf("got %d servers, want 4", len(configs))
	}

	fs := configs["fs"]
	if fs.Name != "fs" || fs.Transport != "stdio" {
		t.Fatalf("fs: name/transport defaults wrong: %+v", fs)
	}
	if env := fs.EnvSlice(); len(env) != 1 || env[0] != "DEBUG=1" {
		t.Fatalf("fs env slice: %v", env)
	}
	if remote := configs["remote"]; remote.Transport != "sse" {
		t.Fatalf("url-only server should default to sse: %+v", remote)
	}
	if sock := configs["sock"]; sock.CallTimeout() != 5 {
		t.Fatalf("timeout override ignored: %+v", sock)
	}
	if configs["fs"].CallTimeout() != DefaultTimeoutSeconds {
		t.Fatal("missing timeout must fall back to default")
	}
	if configs["off"].IsEnabled() {
		t.Fatal("enabled:false must disable the server")
	}
	if !configs["fs"].IsEnabled() {
		t.Fatal("missing enabled must mean enabled")
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDiscoverConfigPath_EnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte(`{"mcpServers":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	got, ok := DiscoverConfigPath()
	if !ok || got != path {
		t.Fatalf("DiscoverConfigPath = %q,%v want %q,true", got, ok, path)
	}
}

// ── Tool naming ──

func TestToolNameRoundTrip(t *testing.T) {
	name := ToolName("csv-tool", "read_csv")
	if name != "mcp__csv-tool__read_csv" {
		t.Fatalf("ToolName = %q", name)
	}
	server, toolName, ok := SplitToolName(name)
	if !ok || server != "csv-tool" || toolName != "read_csv" {
		t.Fatalf("SplitToolName = %q,%q,%v", server, toolName, ok)
	}
}

func TestSplitToolName_Invalid(t *testing.T) {
	for _, name := range []string{"search", "mcp__", "mcp__only", "mcp__s__", "notmcp__a__b"} {
		if _, _, ok := SplitToolName(name); ok {
			t.Errorf("SplitToolName(%q) should fail", name)
		}
	}
	if IsToolName("search") {
		t.Fatal("native tool name misclassified as MCP")
	}
	if !IsToolName("mcp__fs__read_file") {
		t.Fatal("MCP tool name not recognised")
	}
}

// ── Adapter ──

type fakeCaller struct {
	gotName string
	gotArgs map[string]any
	reply   string
	err     error
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	f.gotName = name
	f.gotArgs = args
	return f.reply, f.err
}

func TestAdapter_Execute(t *testing.T) {
	fc := &fakeCaller{reply: "file contents"}
	a := NewAdapter("fs", ToolInfo{Name: "read_file", Description: "reads a file"}, fc)

	if a.Name() != "mcp__fs__read_file" {
		t.Fatalf("adapter name = %q", a.Name())
	}

	res, err := a.Execute(context.Background(), json.RawMessage(`{"path": "/etc/hosts"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "file contents" || res.Error != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if fc.gotName != "read_file" || fc.gotArgs["path"] != "/etc/hosts" {
		t.Fatalf("wrong call forwarded: %q %v", fc.gotName, fc.gotArgs)
	}
}

func TestAdapter_ToolErrorBecomesResultError(t *testing.T) {
	fc := &fakeCaller{err: &ToolError{Server: "fs", Tool: "read_file", Text: "no such file"}}
	a := NewAdapter("fs", ToolInfo{Name: "read_file"}, fc)

	res, err := a.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("tool errors must not surface as Go errors: %v", err)
	}
	if !strings.Contains(res.Error, "no such file") {
		t.Fatalf("result error should carry the server message: %+v", res)
	}
}

func TestAdapter_BadArgs(t *testing.T) {
	a := NewAdapter("fs", ToolInfo{Name: "read_file"}, &fakeCaller{})
	res, err := a.Execute(context.Background(), json.RawMessage(`{not json`))
	if err != nil {
		t.Fatalf("parse failures must not surface as Go errors: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected a parse error in the result")
	}
}

func TestAdapter_Metadata(t *testing.T) {
	a := NewAdapter("fs", ToolInfo{Name: "read_file"}, &fakeCaller{})
	if md := tool.MetadataOf(a); md.Kind != tool.KindMCP {
		t.Fatalf("adapter kind = %q, want %q", md.Kind, tool.KindMCP)
	}
}

// ── Client ──

type flakyWire struct {
	calls    int
	failures int
}

func (f *flakyWire) Initialize(context.Context) error { return nil }
func (f *flakyWire) Close() error                     { return nil }
func (f *flakyWire) ListTools(context.Context) ([]ToolInfo, error) {
	return []ToolInfo{{Name: "t"}}, nil
}
func (f *flakyWire) CallTool(context.Context, string, map[string]any) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("broken pipe")
	}
	return "ok", nil
}

func TestClient_ReconnectsOnceOnTransportFailure(t *testing.T) {
	w := &flakyWire{failures: 1}
	c := NewClient(ServerConfig{Name: "srv", Transport: "ws"})
	c.dial = func(context.Context) (wire, error) { return w, nil }

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	out, err := c.CallTool(context.Background(), "t", nil)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if out != "ok" || w.calls != 2 {
		t.Fatalf("out=%q calls=%d, want ok/2", out, w.calls)
	}
}

func TestClient_NoReconnectForToolError(t *testing.T) {
	w := &toolErrWire{}
	c := NewClient(ServerConfig{Name: "srv", Transport: "ws"})
	dials := 0
	c.dial = func(context.Context) (wire, error) { dials++; return w, nil }

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_, err := c.CallTool(context.Background(), "t", nil)
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if dials != 1 {
		t.Fatalf("tool-level error must not reconnect, dials = %d", dials)
	}
}

type toolErrWire struct{}

func (toolErrWire) Initialize(context.Context) error               { return nil }
func (toolErrWire) Close() error                                   { return nil }
func (toolErrWire) ListTools(context.Context) ([]ToolInfo, error)  { return nil, nil }
func (toolErrWire) CallTool(context.Context, string, map[string]any) (string, error) {
	return "", &ToolError{Server: "srv", Tool: "t", Text: "bad input"}
}
