package parser

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func knownSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func mcpSet(names ...string) func(string) bool {
	return knownSet(names...)
}

// ── Native dialect ──

func TestParse_NativeSearch(t *testing.T) {
	text := `I'll search for that.
<search><query>parseCommand</query><path>./src</path></search>`

	call, err := Parse(text, knownSet("search", "attempt_completion"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "search" {
		t.Fatalf("expected search, got %s", call.Name)
	}
	if call.Params["query"] != "parseCommand" || call.Params["path"] != "./src" {
		t.Fatalf("unexpected params: %v", call.Params)
	}
	if call.Origin != OriginNative {
		t.Fatal("expected native origin")
	}
}

func TestParse_NoToolTag(t *testing.T) {
	call, err := Parse("Just prose, no tools here.", knownSet("search"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call != nil {
		t.Fatalf("expected nil call, got %v", call)
	}
}

func TestParse_UnknownTagIgnored(t *testing.T) {
	text := `<note>remember this</note> then <search><query>x</query></search>`
	call, err := Parse(text, knownSet("search"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call == nil || call.Name != "search" {
		t.Fatalf("expected search call, got %v", call)
	}
}

func TestParse_FirstToolWins(t *testing.T) {
	text := `<search><query>a</query></search><extract><file_path>b.go</file_path></extract>`
	call, err := Parse(text, knownSet("search", "extract"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Name != "search" {
		t.Fatalf("expected first tool (search), got %s", call.Name)
	}
}

func TestParse_ThinkingStripped(t *testing.T) {
	text := `<thinking>should I search? yes</thinking><search><query>foo</query></search>`
	call, err := Parse(text, knownSet("search"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Thinking != "should I search? yes" {
		t.Fatalf("expected thinking captured, got %q", call.Thinking)
	}
	if call.Params["query"] != "foo" {
		t.Fatalf("unexpected params: %v", call.Params)
	}
}

func TestParse_UnclosedToolTag(t *testing.T) {
	_, err := Parse("<search><query>foo</query>", knownSet("search"), nil)
	var perr *ParseError
	if !asParseError(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if !strings.Contains(perr.Hint, "closing tag") {
		t.Fatalf("hint should mention the closing tag: %q", perr.Hint)
	}
}

func TestParse_EntityDecodedValues(t *testing.T) {
	text := `<search><query>a &lt; b &amp;&amp; c &gt; d</query></search>`
	call, err := Parse(text, knownSet("search"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Params["query"] != "a < b && c > d" {
		t.Fatalf("entities not decoded: %q", call.Params["query"])
	}
}

// ── Closing-tag-in-payload (last-occurrence rule) ──

func TestParse_CompletionPayloadContainsClosingTag(t *testing.T) {
	payload := `{"code": "match </attempt_completion> here", "n": 1}`
	text := "<attempt_completion>" + payload + "</attempt_completion>"

	call, err := Parse(text, knownSet("attempt_completion"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Params["result"] != payload {
		t.Fatalf("payload truncated:\nwant %q\ngot  %q", payload, call.Params["result"])
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(call.Params["result"]), &decoded); err != nil {
		t.Fatalf("result should round-trip as JSON: %v", err)
	}
}

func TestParse_ResultWrapperWithClosingTagInside(t *testing.T) {
	inner := `regex: </attempt_completion>$ anchors the tag`
	text := "<attempt_completion><result>" + inner + "</result></attempt_completion>"

	call, err := Parse(text, knownSet("attempt_completion"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Params["result"] != inner {
		t.Fatalf("want %q, got %q", inner, call.Params["result"])
	}
}

func TestParse_ParamValueContainsOwnClosingTag(t *testing.T) {
	text := `<search><query>uses </query> literally</query><path>.</path></search>`
	call, err := Parse(text, knownSet("search"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Params["query"] != "uses </query> literally" {
		t.Fatalf("got %q", call.Params["query"])
	}
	if call.Params["path"] != "." {
		t.Fatalf("sibling param lost: %v", call.Params)
	}
}

// ── MCP dialect ──

func TestParse_MCPParams(t *testing.T) {
	text := "<mcp__fs__read_file>\n<params>\n{ \"path\": \"/abs/path\" }\n</params>\n</mcp__fs__read_file>"

	call, err := Parse(text, knownSet("mcp__fs__read_file"), mcpSet("mcp__fs__read_file"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.Origin != OriginMCP {
		t.Fatal("expected MCP origin")
	}
	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		t.Fatalf("args not JSON: %v", err)
	}
	if args["path"] != "/abs/path" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestParse_MCPSingleQuotedFencedJSON(t *testing.T) {
	text := "<mcp__db__query>\n<params>\n```json\n{ 'sql': 'select 1', 'rows': [1, 2] }\n```\n</params>\n</mcp__db__query>"

	call, err := Parse(text, knownSet("mcp__db__query"), mcpSet("mcp__db__query"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var args map[string]any
	if err := json.Unmarshal(call.Args, &args); err != nil {
		t.Fatalf("args not JSON: %v", err)
	}
	if args["sql"] != "select 1" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestParse_MCPInvalidJSON(t *testing.T) {
	text := "<mcp__fs__read_file><params>{not json}</params></mcp__fs__read_file>"
	_, err := Parse(text, knownSet("mcp__fs__read_file"), mcpSet("mcp__fs__read_file"))
	var perr *ParseError
	if !asParseError(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

// ── Quote normalisation ──

func TestNormalizeQuotes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single quoted object", `{'a': 'b'}`, `{"a": "b"}`},
		{"escaped apostrophe", `{'msg': 'it\'s fine'}`, `{"msg": "it's fine"}`},
		{"double quote inside single", `{'html': '<a href="x">'}`, `{"html": "<a href=\"x\">"}`},
		{"already valid untouched", `{"a": "don't touch"}`, `{"a": "don't touch"}`},
		{"mixed array", `['x', "y"]`, `["x", "y"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQuotes(tt.in); got != tt.want {
				t.Fatalf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExtractJSONBlock_RawJSONNotAltered(t *testing.T) {
	raw := `{"note": "single ' quote stays"}`
	if got := ExtractJSONBlock(raw); got != raw {
		t.Fatalf("raw JSON must pass through untouched, got %q", got)
	}
}

// ── Entity encoder round trip ──

func TestEncodeDecodeEntities_RoundTrip(t *testing.T) {
	inputs := []string{
		`a < b && c > d`,
		`"quoted" and 'single'`,
		`plain text`,
		`&already & encoded? &amp;`,
	}
	for _, in := range inputs {
		if got := DecodeEntities(EncodeEntities(in)); got != in {
			t.Fatalf("round trip failed: %q -> %q", in, got)
		}
	}
}

func asParseError(err error, target **ParseError) bool {
	return errors.As(err, target)
}
