// Package parser extracts tool calls from assistant text.
//
// The dialect is hybrid: native tools carry their parameters as direct child
// elements (<search><query>foo</query></search>), while MCP-discovered tools
// carry a single <params> child whose content is JSON. Assistant text is not
// XML — it is prose with XML-shaped islands, possibly truncated by streaming,
// possibly containing closing-tag lookalikes inside payloads. A conforming
// XML parser would reject most real model output, so this package works on
// raw string indices instead.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Origin describes which dialect produced a ToolCall.
type Origin int

const (
	OriginNative Origin = iota // parameters from child elements
	OriginMCP                  // parameters from a <params> JSON block
)

// ToolCall is one parsed tool invocation.
type ToolCall struct {
	Name     string
	Params   map[string]string // native dialect: param name -> raw value
	Args     json.RawMessage   // canonical JSON arguments for dispatch
	Thinking string            // stripped <thinking> content, debug only
	Origin   Origin
}

// ParseError marks assistant text that looked like a tool call but could not
// be decoded. The loop feeds Hint back to the model as a corrective turn.
type ParseError struct {
	Hint string
}

func (e *ParseError) Error() string { return e.Hint }

var thinkingRE = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)

// StripThinking removes all <thinking>...</thinking> blocks and returns the
// cleaned text plus the concatenated thinking content.
func StripThinking(text string) (clean, thinking string) {
	var blocks []string
	for _, m := range thinkingRE.FindAllString(text, -1) {
		inner := strings.TrimPrefix(m, "<thinking>")
		inner = strings.TrimSuffix(inner, "</thinking>")
		blocks = append(blocks, strings.TrimSpace(inner))
	}
	clean = thinkingRE.ReplaceAllString(text, "")
	return clean, strings.Join(blocks, "\n")
}

// Parse extracts at most one tool call from assistant text.
//
// known reports whether a tag name is a registered tool; isMCP reports
// whether that tool uses the <params> JSON dialect. Returns (nil, nil) when
// the text contains no known tool tag — the loop treats that as a completion
// without a tool. A non-nil *ParseError means the text contained a
// recognisably malformed call.
func Parse(text string, known func(string) bool, isMCP func(string) bool) (*ToolCall, error) {
	clean, thinking := StripThinking(text)

	name, open, inner, ok := findToolBlock(clean, known)
	if !ok {
		if open != "" {
			// Opening tag found but no closing tag anywhere after it:
			// streaming truncation or a forgotten close.
			return nil, &ParseError{Hint: fmt.Sprintf(
				"Found an opening <%s> tag but no matching </%s> closing tag. Re-emit the complete tool call.", open, open)}
		}
		return nil, nil
	}

	if isMCP != nil && isMCP(name) {
		call, err := parseMCPParams(name, inner)
		if err != nil {
			return nil, err
		}
		call.Thinking = thinking
		return call, nil
	}

	call := parseNativeParams(name, inner)
	call.Thinking = thinking
	return call, nil
}

// findToolBlock locates the first opening tag of a known tool and the
// matching closing tag. The closing tag is the LAST occurrence of
// </name> after the opening tag: raw payloads (JSON, regex patterns) can
// legitimately contain the literal closing-tag string, and the first
// occurrence would truncate them.
//
// Returns (name, "", "", false) when no known opening tag exists, and
// (_, name, "", false) when an opening tag exists without any closing tag.
func findToolBlock(text string, known func(string) bool) (name, openOnly, inner string, ok bool) {
	tagRE := regexp.MustCompile(`<([a-zA-Z_][a-zA-Z0-9_-]*)>`)
	for _, loc := range tagRE.FindAllStringSubmatchIndex(text, -1) {
		candidate := text[loc[2]:loc[3]]
		if !known(candidate) {
			continue
		}
		closing := "</" + candidate + ">"
		rest := text[loc[1]:]
		idx := strings.LastIndex(rest, closing)
		if idx < 0 {
			return "", candidate, "", false
		}
		return candidate, "", rest[:idx], true
	}
	return "", "", "", false
}

// parseNativeParams decodes direct child elements into a param map.
// Values are whitespace-trimmed and entity-decoded; nested markup inside a
// value survives verbatim because the closing tag is found by last
// occurrence, mirroring the outer block rule.
func parseNativeParams(name, inner string) *ToolCall {
	params := make(map[string]string)
	childRE := regexp.MustCompile(`<([a-zA-Z_][a-zA-Z0-9_-]*)>`)

	pos := 0
	for pos < len(inner) {
		loc := childRE.FindStringSubmatchIndex(inner[pos:])
		if loc == nil {
			break
		}
		pname := inner[pos+loc[2] : pos+loc[3]]
		valueStart := pos + loc[1]
		closing := "</" + pname + ">"
		idx := strings.LastIndex(inner[valueStart:], closing)
		if idx < 0 {
			// Unclosed child: take the remainder as the value.
			params[pname] = DecodeEntities(strings.TrimSpace(inner[valueStart:]))
			break
		}
		params[pname] = DecodeEntities(strings.TrimSpace(inner[valueStart : valueStart+idx]))
		pos = valueStart + idx + len(closing)
	}

	// A tool body with no child elements is a single implicit parameter:
	// <attempt_completion>text</attempt_completion> means result=text.
	// No entity decoding here — the payload is returned verbatim.
	if len(params) == 0 {
		trimmed := strings.TrimSpace(inner)
		if trimmed != "" {
			key := "result"
			if name != "attempt_completion" {
				key = "value"
			}
			params[key] = trimmed
		}
	}

	args := make(map[string]any, len(params))
	for k, v := range params {
		args[k] = v
	}
	raw, _ := json.Marshal(args)

	return &ToolCall{Name: name, Params: params, Args: raw, Origin: OriginNative}
}

// parseMCPParams decodes the single <params> JSON child of an MCP tool call.
func parseMCPParams(name, inner string) (*ToolCall, error) {
	const openTag, closeTag = "<params>", "</params>"

	start := strings.Index(inner, openTag)
	if start < 0 {
		// Tolerate bare JSON directly inside the tool tag.
		return decodeMCPJSON(name, inner)
	}
	end := strings.LastIndex(inner, closeTag)
	if end < 0 || end < start {
		return nil, &ParseError{Hint: fmt.Sprintf(
			"Tool <%s> has an unterminated <params> block. Close it with </params>.", name)}
	}
	return decodeMCPJSON(name, inner[start+len(openTag):end])
}

func decodeMCPJSON(name, body string) (*ToolCall, error) {
	jsonText := ExtractJSONBlock(body)

	var probe map[string]any
	if err := json.Unmarshal([]byte(jsonText), &probe); err != nil {
		return nil, &ParseError{Hint: fmt.Sprintf(
			"Tool <%s> parameters are not valid JSON: %v. Emit a single JSON object inside <params>.", name, err)}
	}
	canonical, _ := json.Marshal(probe)
	return &ToolCall{Name: name, Args: canonical, Origin: OriginMCP}, nil
}

// DecodeEntities decodes HTML entities in native parameter values. It is a
// right-inverse of EncodeEntities on the characters &<>"'.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}

// EncodeEntities conservatively encodes exactly &<>"' — the characters a
// native-dialect value cannot carry raw without risking tag confusion.
func EncodeEntities(s string) string {
	return html.EscapeString(s)
}
