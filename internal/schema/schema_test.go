package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// ── Cleaning ──

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Just an answer.",
			want: "Just an answer.",
		},
		{
			name: "result wrapper stripped",
			in:   "<result>{\"a\": 1}</result>",
			want: "{\"a\": 1}",
		},
		{
			name: "result wrapper with inner closing tag",
			in:   "<result>text with </result> inside</result>",
			want: "text with </result> inside",
		},
		{
			name: "partial wrapper left alone",
			in:   "<result>unclosed",
			want: "<result>unclosed",
		},
		{
			name: "whole-response fence extracted",
			in:   "```json\n{\"a\": 1}\n```",
			want: "{\"a\": 1}",
		},
		{
			name: "fence with surrounding whitespace",
			in:   "\n\n```json\n{\"a\": 1}\n```\n\n",
			want: "{\"a\": 1}",
		},
		{
			name: "fence inside prose not harvested",
			in:   "Here is the config:\n```json\n{\"a\": 1}\n```\nUse it wisely.",
			want: "Here is the config:\n```json\n{\"a\": 1}\n```\nUse it wisely.",
		},
		{
			name: "single quotes normalised inside fence",
			in:   "```json\n{'key': 'value'}\n```",
			want: "{\"key\": \"value\"}",
		},
		{
			name: "wrapper then fence",
			in:   "<result>\n```json\n{\"a\": 1}\n```\n</result>",
			want: "{\"a\": 1}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"plain",
		"<result>{\"a\": 1}</result>",
		"```json\n{'a': 'b'}\n```",
		"prose with ```json\n{}\n``` embedded",
	}
	for _, in := range inputs {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Errorf("Clean not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

// ── Validation ──

const personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "number"},
		"address": {
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"]
		}
	},
	"required": ["name"]
}`

func TestValidator_ValidPayload(t *testing.T) {
	v, err := NewValidator(personSchema, true)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	out, err := v.Validate(`{"name": "Ada", "age": 36}`)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
}

func TestValidator_StrictRejectsExtraProperties(t *testing.T) {
	v, err := NewValidator(personSchema, true)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, err = v.Validate(`{"name": "Ada", "unexpected": true}`)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidator_StrictRecursesIntoNestedObjects(t *testing.T) {
	v, err := NewValidator(personSchema, true)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, err = v.Validate(`{"name": "Ada", "address": {"city": "London", "planet": "Earth"}}`)
	if err == nil {
		t.Fatal("nested extra property must fail in strict mode")
	}
}

func TestValidator_NonStrictAllowsExtras(t *testing.T) {
	v, err := NewValidator(personSchema, false)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, err := v.Validate(`{"name": "Ada", "unexpected": true}`); err != nil {
		t.Fatalf("non-strict mode must allow extras: %v", err)
	}
}

func TestValidator_IssuesCarryDotPaths(t *testing.T) {
	v, err := NewValidator(personSchema, true)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, err = v.Validate(`{"name": "Ada", "age": "not a number"}`)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, is := range ve.Issues {
		if is.Path == "$.age" {
			found = true
			if is.Message == "" {
				t.Error("issue message must not be empty")
			}
			if !strings.Contains(is.Value, "not a number") {
				t.Errorf("issue should carry the offending value, got %q", is.Value)
			}
		}
	}
	if !found {
		t.Fatalf("no issue at $.age: %v", ve.Issues)
	}
}

func TestValidator_ParseErrorHasCaret(t *testing.T) {
	v, err := NewValidator(personSchema, true)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, err = v.Validate(`{"name": "Ada", }`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	msg := pe.Error()
	if !strings.Contains(msg, "line 1") || !strings.Contains(msg, "^") {
		t.Fatalf("parse error must carry position and caret:\n%s", msg)
	}
}

func TestValidator_SimpleWrapperAutoWrap(t *testing.T) {
	v, err := NewValidator(`{"type": "object", "properties": {"text": {"type": "string"}}, "required": ["text"]}`, true)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	out, err := v.Validate("Plain prose here.")
	if err != nil {
		t.Fatalf("auto-wrap should satisfy the schema: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("wrapped output not JSON: %v", err)
	}
	if decoded["text"] != "Plain prose here." {
		t.Fatalf("wrapped value = %q", decoded["text"])
	}
}

func TestSimpleWrapperField(t *testing.T) {
	tests := []struct {
		schema string
		field  string
		ok     bool
	}{
		{`{"type": "object", "properties": {"text": {"type": "string"}}}`, "text", true},
		{`{"text": "string"}`, "text", true},
		{`{"type": "object", "properties": {"a": {"type": "string"}, "b": {"type": "string"}}}`, "", false},
		{`{"type": "object", "properties": {"n": {"type": "number"}}}`, "", false},
		{`{"type": "array"}`, "", false},
	}
	for _, tt := range tests {
		var doc any
		if err := json.Unmarshal([]byte(tt.schema), &doc); err != nil {
			t.Fatalf("bad test schema: %v", err)
		}
		field, ok := simpleWrapperField(doc)
		if ok != tt.ok || field != tt.field {
			t.Errorf("simpleWrapperField(%s) = %q,%v want %q,%v", tt.schema, field, ok, tt.field, tt.ok)
		}
	}
}

// ── Repair prompts ──

func TestBuildRepairPrompt_Escalates(t *testing.T) {
	verr := &ValidationError{Issues: []Issue{{Path: "$.age", Message: "got string, want number"}}}

	first := BuildRepairPrompt(`{"age": "x"}`, personSchema, verr, 1)
	if !strings.Contains(first, "$.age") || !strings.Contains(first, `{"age": "x"}`) {
		t.Fatal("prompt must carry the error and the invalid text")
	}
	if !strings.Contains(first, "Return only the corrected JSON") {
		t.Fatal("prompt must instruct JSON-only output")
	}
	if strings.Contains(first, "FINAL ATTEMPT") {
		t.Fatal("first attempt must not use the final-attempt variant")
	}

	last := BuildRepairPrompt(`{"age": "x"}`, personSchema, verr, MaxRepairAttempts)
	if !strings.Contains(last, "FINAL ATTEMPT") {
		t.Fatal("last attempt must use the final-attempt variant")
	}
}

// ── Mermaid ──

func TestValidateMermaid(t *testing.T) {
	tests := []struct {
		name    string
		diagram string
		wantErr bool
	}{
		{"valid flowchart", "graph TD\n  A[Start] --> B[End]", false},
		{"valid sequence", "sequenceDiagram\n  Alice->>Bob: hi", false},
		{"empty", "   ", true},
		{"unknown header", "blueprint TD\n A --> B", true},
		{"unbalanced bracket", "graph TD\n  A[Start --> B[End]", true},
		{"unterminated quote", "graph TD\n  A[\"Start] --> B", true},
		{"quoted brackets ok", "graph TD\n  A[\"weird [label]\"] --> B", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMermaid(tt.diagram)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMermaid() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindMermaidInJSON(t *testing.T) {
	var instance any
	payload := `{"answer": "prose", "diagram": "graph TD\n A --> B", "nested": {"d": "sequenceDiagram\n A->>B: x"}}`
	if err := json.Unmarshal([]byte(payload), &instance); err != nil {
		t.Fatal(err)
	}
	found := FindMermaidInJSON(instance)
	if len(found) != 2 {
		t.Fatalf("found %d diagrams, want 2: %v", len(found), found)
	}
	if _, ok := found["$.diagram"]; !ok {
		t.Fatalf("missing $.diagram: %v", found)
	}
	if _, ok := found["$.nested.d"]; !ok {
		t.Fatalf("missing $.nested.d: %v", found)
	}
}
