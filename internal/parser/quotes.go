package parser

import "strings"

// jsonFenceOpen matches the opening of a fenced json block. The language tag
// is required: bare fences are too common in prose to harvest safely.
const jsonFenceOpen = "```json"

// FindJSONFence returns the content of the first ```json fenced block along
// with the byte offsets of the whole fence (including the backtick lines).
func FindJSONFence(s string) (content string, start, end int, ok bool) {
	start = strings.Index(s, jsonFenceOpen)
	if start < 0 {
		return "", 0, 0, false
	}
	bodyStart := start + len(jsonFenceOpen)
	// Skip the remainder of the opening line.
	if nl := strings.IndexByte(s[bodyStart:], '\n'); nl >= 0 {
		bodyStart += nl + 1
	}
	rel := strings.Index(s[bodyStart:], "```")
	if rel < 0 {
		return "", 0, 0, false
	}
	end = bodyStart + rel + 3
	return s[bodyStart : bodyStart+rel], start, end, true
}

// ExtractJSONBlock prepares the body of a <params> element for json.Unmarshal.
// If the body carries a ```json fence, the fence content is extracted and
// JS-style single quotes are normalised to JSON double quotes. Raw JSON
// outside fences is returned untouched so string content containing single
// quotes is never rewritten.
func ExtractJSONBlock(body string) string {
	if content, _, _, ok := FindJSONFence(body); ok {
		return NormalizeQuotes(strings.TrimSpace(content))
	}
	return strings.TrimSpace(body)
}

// NormalizeQuotes rewrites JavaScript-style single-quoted strings to JSON
// double-quoted strings. It is a character-level state machine:
//
//   - inside a double-quoted string nothing is altered;
//   - a single quote outside any string opens a rewritten string: the
//     delimiters become double quotes, embedded double quotes gain a
//     backslash, and \' collapses to a bare apostrophe;
//   - everything outside strings passes through unchanged.
//
// Apply only to text extracted from a ```json fence; on already-valid JSON
// an apostrophe inside a double-quoted string is left alone, so the function
// is safe there too, but the caller contract keeps the blast radius small.
func NormalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inDouble := false
	inSingle := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		switch {
		case inDouble:
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if ch == '"' {
				inDouble = false
			}

		case inSingle:
			switch {
			case ch == '\\' && i+1 < len(s) && s[i+1] == '\'':
				b.WriteByte('\'') // \' -> '
				i++
			case ch == '\\' && i+1 < len(s):
				b.WriteByte(ch)
				i++
				b.WriteByte(s[i])
			case ch == '"':
				b.WriteString(`\"`)
			case ch == '\'':
				b.WriteByte('"')
				inSingle = false
			default:
				b.WriteByte(ch)
			}

		default:
			switch ch {
			case '"':
				inDouble = true
				b.WriteByte(ch)
			case '\'':
				inSingle = true
				b.WriteByte('"')
			default:
				b.WriteByte(ch)
			}
		}
	}
	return b.String()
}
