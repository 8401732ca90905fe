package schema

import (
	"fmt"
	"strings"
)

// mermaidHeaders are the diagram types we recognise. The first word of a
// diagram must be one of these.
var mermaidHeaders = []string{
	"graph", "flowchart", "sequenceDiagram", "classDiagram", "stateDiagram",
	"stateDiagram-v2", "erDiagram", "gantt", "pie", "journey", "gitGraph",
	"mindmap", "timeline", "quadrantChart",
}

// LooksLikeMermaid reports whether a string plausibly holds a Mermaid
// diagram: its first non-empty line starts with a known diagram header.
func LooksLikeMermaid(s string) bool {
	first := firstWord(s)
	if first == "" {
		return false
	}
	for _, h := range mermaidHeaders {
		if first == h {
			return true
		}
	}
	return false
}

// ValidateMermaid runs lightweight structural checks on a diagram without a
// full Mermaid parser: known header, balanced brackets, closed quotes. It
// catches the failure modes models actually produce (truncated diagrams,
// stray quotes) rather than attempting grammar-level validation.
func ValidateMermaid(diagram string) error {
	trimmed := strings.TrimSpace(diagram)
	if trimmed == "" {
		return fmt.Errorf("diagram is empty")
	}
	if !LooksLikeMermaid(trimmed) {
		return fmt.Errorf("unknown diagram type %q", firstWord(trimmed))
	}

	var depth struct{ paren, square, brace int }
	inQuote := false
	for i := 0; i < len(trimmed); i++ {
		ch := trimmed[i]
		if inQuote {
			if ch == '"' {
				inQuote = false
			}
			continue
		}
		switch ch {
		case '"':
			inQuote = true
		case '(':
			depth.paren++
		case ')':
			depth.paren--
		case '[':
			depth.square++
		case ']':
			depth.square--
		case '{':
			depth.brace++
		case '}':
			depth.brace--
		}
		if depth.paren < 0 || depth.square < 0 || depth.brace < 0 {
			return fmt.Errorf("unbalanced brackets near byte %d", i)
		}
	}
	if inQuote {
		return fmt.Errorf("unterminated quoted label")
	}
	if depth.paren != 0 || depth.square != 0 || depth.brace != 0 {
		return fmt.Errorf("unbalanced brackets at end of diagram")
	}
	return nil
}

// FindMermaidInJSON walks a decoded JSON value and returns the dot paths and
// contents of every string that looks like a Mermaid diagram.
func FindMermaidInJSON(instance any) map[string]string {
	found := make(map[string]string)
	walkStrings(instance, "$", func(path, s string) {
		if LooksLikeMermaid(s) {
			found[path] = s
		}
	})
	return found
}

func walkStrings(v any, path string, visit func(path, s string)) {
	switch node := v.(type) {
	case string:
		visit(path, node)
	case map[string]any:
		for k, sub := range node {
			walkStrings(sub, path+"."+k, visit)
		}
	case []any:
		for i, sub := range node {
			walkStrings(sub, fmt.Sprintf("%s[%d]", path, i), visit)
		}
	}
}

func firstWord(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			return line[:i]
		}
		return line
	}
	return ""
}
