// Package schema validates the final completion payload against a
// caller-supplied JSON Schema, and builds the correction prompts for the
// self-repair pass when validation fails.
package schema

import (
	"strings"

	"github.com/probelabs/probe-agent/internal/parser"
)

// Clean normalises a completion payload before validation:
//
//  1. strip an outer <result>…</result> wrapper when the entire payload is
//     one element;
//  2. extract the first ```json fence only when the fence spans essentially
//     the whole response — a fence embedded in prose is left alone so that
//     template fragments in surrounding text are never harvested;
//  3. normalise JS-style single quotes inside the extracted fence.
//
// Clean is idempotent: Clean(Clean(x)) == Clean(x).
func Clean(s string) string {
	s = strings.TrimSpace(s)
	s = stripResultWrapper(s)

	content, start, end, ok := parser.FindJSONFence(s)
	if ok && wholeResponse(s, start, end) {
		return parser.NormalizeQuotes(strings.TrimSpace(content))
	}
	return s
}

// stripResultWrapper removes <result>…</result> when it encloses the whole
// payload. The closing tag is searched from the end so a payload that itself
// contains "</result>" stays intact.
func stripResultWrapper(s string) string {
	const open, close = "<result>", "</result>"
	if !strings.HasPrefix(s, open) {
		return s
	}
	last := strings.LastIndex(s, close)
	if last < 0 || strings.TrimSpace(s[last+len(close):]) != "" {
		return s
	}
	return strings.TrimSpace(s[len(open):last])
}

// wholeResponse reports whether the fence at [start,end) covers the response
// up to leading/trailing whitespace.
func wholeResponse(s string, start, end int) bool {
	return strings.TrimSpace(s[:start]) == "" && strings.TrimSpace(s[end:]) == ""
}
