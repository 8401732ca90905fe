package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Issue is one validation failure, addressed by a dot-notation path.
type Issue struct {
	Path       string `json:"path"`
	Message    string `json:"message"`
	Value      string `json:"value,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationError carries every issue found in one validation pass.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "response does not match the expected schema (%d issues):\n", len(e.Issues))
	for _, is := range e.Issues {
		fmt.Fprintf(&sb, "- at %s: %s", is.Path, is.Message)
		if is.Value != "" {
			fmt.Fprintf(&sb, " (got %s)", is.Value)
		}
		if is.Suggestion != "" {
			fmt.Fprintf(&sb, " — %s", is.Suggestion)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ParseError is a JSON syntax failure with the offending position rendered
// as a caret line, so the repair model can see exactly where parsing stopped.
type ParseError struct {
	Offset int64
	Line   int
	Column int
	Cause  error
	Source string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON at line %d, column %d: %v\n%s",
		e.Line, e.Column, e.Cause, caretLine(e.Source, e.Offset))
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Validator validates cleaned payloads against one compiled JSON Schema.
// Strict mode (the default) implicitly forbids additional properties on
// every object schema that does not set additionalProperties itself.
type Validator struct {
	compiled  *jsonschema.Schema
	doc       any
	rawSchema string
	printer   *message.Printer
}

// NewValidator compiles the schema. Strict mode rewrites the schema document
// before compilation; see applyStrictMode.
func NewValidator(schemaJSON string, strict bool) (*Validator, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("schema is not valid JSON: %w", err)
	}
	if strict {
		applyStrictMode(doc)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("response-schema.json", doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile("response-schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return &Validator{
		compiled:  compiled,
		doc:       doc,
		rawSchema: schemaJSON,
		printer:   message.NewPrinter(language.English),
	}, nil
}

// SchemaJSON returns the schema text as supplied by the caller, for prompts.
func (v *Validator) SchemaJSON() string { return v.rawSchema }

// Validate cleans and validates a payload. The returned string is the cleaned
// (and possibly auto-wrapped) JSON to hand to the caller. Failures come back
// as *ParseError or *ValidationError for the repair loop to act on.
func (v *Validator) Validate(payload string) (string, error) {
	cleaned := Clean(payload)

	var instance any
	if err := json.Unmarshal([]byte(cleaned), &instance); err != nil {
		// Simple-wrapper schemas accept the prose as the single field value.
		if field, ok := simpleWrapperField(v.doc); ok {
			wrapped, werr := json.Marshal(map[string]string{field: cleaned})
			if werr == nil {
				if verr := v.compiled.Validate(map[string]any{field: cleaned}); verr == nil {
					return string(wrapped), nil
				}
			}
		}
		return cleaned, newParseError(cleaned, err)
	}

	if err := v.compiled.Validate(instance); err != nil {
		return cleaned, v.enhance(err, instance)
	}
	return cleaned, nil
}

// enhance converts the library's validation error into dot-path issues with
// value snippets and suggestions.
func (v *Validator) enhance(err error, instance any) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var issues []Issue
	collectLeaves(ve, func(leaf *jsonschema.ValidationError) {
		path := dotPath(leaf.InstanceLocation)
		msg := leaf.ErrorKind.LocalizedString(v.printer)
		issues = append(issues, Issue{
			Path:       path,
			Message:    msg,
			Value:      valueSnippet(instance, leaf.InstanceLocation),
			Suggestion: suggestionFor(msg),
		})
	})
	if len(issues) == 0 {
		issues = append(issues, Issue{Path: "$", Message: err.Error()})
	}
	return &ValidationError{Issues: issues}
}

// collectLeaves visits the deepest causes of a validation error tree.
func collectLeaves(ve *jsonschema.ValidationError, visit func(*jsonschema.ValidationError)) {
	if len(ve.Causes) == 0 {
		visit(ve)
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, visit)
	}
}

// dotPath renders an instance location as $.a.b[2].c style dot notation.
func dotPath(loc []string) string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, seg := range loc {
		if isIndex(seg) {
			fmt.Fprintf(&sb, "[%s]", seg)
		} else {
			sb.WriteByte('.')
			sb.WriteString(seg)
		}
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// valueSnippet renders the offending value, truncated for prompt hygiene.
func valueSnippet(instance any, loc []string) string {
	cur := instance
	for _, seg := range loc {
		switch node := cur.(type) {
		case map[string]any:
			var ok bool
			if cur, ok = node[seg]; !ok {
				return ""
			}
		case []any:
			var idx int
			if _, err := fmt.Sscanf(seg, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return ""
			}
			cur = node[idx]
		default:
			return ""
		}
	}
	b, err := json.Marshal(cur)
	if err != nil {
		return ""
	}
	s := string(b)
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

// suggestionFor maps common failure messages to an actionable fix.
func suggestionFor(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "missing propert"):
		return "add the missing property"
	case strings.Contains(lower, "additional propert") || strings.Contains(lower, "not allowed"):
		return "remove the unexpected property"
	case strings.Contains(lower, "got") && strings.Contains(lower, "want"):
		return "change the value to the expected type"
	case strings.Contains(lower, "enum") || strings.Contains(lower, "one of"):
		return "use one of the allowed values"
	default:
		return ""
	}
}

// newParseError extracts line/column from a json.SyntaxError when available.
func newParseError(src string, err error) error {
	pe := &ParseError{Cause: err, Source: src, Line: 1, Column: 1}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		pe.Offset = syn.Offset
		pe.Line, pe.Column = lineCol(src, syn.Offset)
	}
	return pe
}

// lineCol converts a byte offset into 1-based line and column numbers.
func lineCol(src string, offset int64) (line, col int) {
	line, col = 1, 1
	for i := int64(0); i < offset && i < int64(len(src)); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// caretLine renders the offending source line with a ^ under the position.
func caretLine(src string, offset int64) string {
	if offset > int64(len(src)) {
		offset = int64(len(src))
	}
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[start:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += start
	}
	line := src[start:end]
	col := int(offset) - start
	if col > len(line) {
		col = len(line)
	}
	return line + "\n" + strings.Repeat(" ", col) + "^"
}
