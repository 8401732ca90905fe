package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/probelabs/probe-agent/internal/search"
	"github.com/probelabs/probe-agent/internal/tool"
)

// formatOutput renders a probe invocation for the model: stdout on success,
// an Error-prefixed combination on non-zero exit.
func formatOutput(out search.Output) tool.Result {
	if out.ExitCode != 0 {
		msg := strings.TrimSpace(out.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(out.Stdout)
		}
		return tool.Result{Error: fmt.Sprintf("Error: exit code %d: %s", out.ExitCode, msg)}
	}
	return tool.Result{Output: out.Stdout}
}

// ── search ──

// SearchTool runs the code-search engine over the repository.
type SearchTool struct {
	engine search.Engine
}

func NewSearchTool(engine search.Engine) *SearchTool {
	return &SearchTool{engine: engine}
}

func (t *SearchTool) Name() string { return "search" }
func (t *SearchTool) Description() string {
	return "Search code in the repository using keyword queries. Returns matching code blocks with file paths and line numbers."
}

func (t *SearchTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "query", Type: "string", Description: "Search query (keywords, identifiers, or phrases)", Required: true},
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory to search, relative to the project root (default: whole project)"},
		tool.SchemaParam{Name: "exact", Type: "boolean", Description: "Match the query exactly instead of tokenised search"},
		tool.SchemaParam{Name: "allow_tests", Type: "boolean", Description: "Include test files in results"},
	)
}

func (t *SearchTool) Init(_ context.Context) error { return nil }
func (t *SearchTool) Close() error                 { return nil }

type searchArgs struct {
	Query      string `json:"query"`
	Path       string `json:"path"`
	Exact      string `json:"exact"`
	AllowTests string `json:"allow_tests"`
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Query) == "" {
		return tool.Result{Error: "the query parameter is required"}, nil
	}

	out, err := t.engine.Search(ctx, search.SearchParams{
		Query:      a.Query,
		Path:       a.Path,
		Exact:      parseBoolArg(a.Exact),
		AllowTests: parseBoolArg(a.AllowTests),
	})
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}
	return formatOutput(out), nil
}

// ── query ──

// QueryTool runs AST-aware structural queries.
type QueryTool struct {
	engine search.Engine
}

func NewQueryTool(engine search.Engine) *QueryTool {
	return &QueryTool{engine: engine}
}

func (t *QueryTool) Name() string { return "query" }
func (t *QueryTool) Description() string {
	return "Search code structurally using AST patterns, e.g. `fn $NAME($$$PARAMS)` to find function definitions."
}

func (t *QueryTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "AST pattern with $METAVARIABLES", Required: true},
		tool.SchemaParam{Name: "path", Type: "string", Description: "Directory to search (default: whole project)"},
		tool.SchemaParam{Name: "language", Type: "string", Description: "Limit matching to one language, e.g. go, rust, js"},
		tool.SchemaParam{Name: "allow_tests", Type: "boolean", Description: "Include test files in results"},
	)
}

func (t *QueryTool) Init(_ context.Context) error { return nil }
func (t *QueryTool) Close() error                 { return nil }

type queryArgs struct {
	Pattern    string `json:"pattern"`
	Path       string `json:"path"`
	Language   string `json:"language"`
	AllowTests string `json:"allow_tests"`
}

func (t *QueryTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return tool.Result{Error: "the pattern parameter is required"}, nil
	}

	out, err := t.engine.Query(ctx, search.QueryParams{
		Pattern:    a.Pattern,
		Path:       a.Path,
		Language:   a.Language,
		AllowTests: parseBoolArg(a.AllowTests),
	})
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}
	return formatOutput(out), nil
}

// ── extract ──

// ExtractTool pulls a code block out of a file, expanding to the enclosing
// syntactic unit around the requested line.
type ExtractTool struct {
	engine  search.Engine
	confine *Confine
}

func NewExtractTool(engine search.Engine, confine *Confine) *ExtractTool {
	return &ExtractTool{engine: engine, confine: confine}
}

func (t *ExtractTool) Name() string { return "extract" }
func (t *ExtractTool) Description() string {
	return "Extract a code block from a file. With a line number, returns the enclosing function or block; with a range, returns those lines."
}

func (t *ExtractTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "file_path", Type: "string", Description: "File to extract from, relative to the project root", Required: true},
		tool.SchemaParam{Name: "line", Type: "integer", Description: "Line number to extract around"},
		tool.SchemaParam{Name: "end_line", Type: "integer", Description: "End of an explicit line range"},
		tool.SchemaParam{Name: "context_lines", Type: "integer", Description: "Extra context lines around the block"},
		tool.SchemaParam{Name: "format", Type: "string", Description: "Output format", Enum: []string{"plain", "markdown", "json"}},
	)
}

func (t *ExtractTool) Init(_ context.Context) error { return nil }
func (t *ExtractTool) Close() error                 { return nil }

type extractArgs struct {
	FilePath     string `json:"file_path"`
	Line         string `json:"line"`
	EndLine      string `json:"end_line"`
	ContextLines string `json:"context_lines"`
	Format       string `json:"format"`
}

func (t *ExtractTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.FilePath) == "" {
		return tool.Result{Error: "the file_path parameter is required"}, nil
	}

	resolved, err := t.confine.Resolve(a.FilePath)
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}

	line, err := parseIntArg(a.Line, 0)
	if err != nil {
		return tool.Result{Error: "line: " + err.Error()}, nil
	}
	endLine, err := parseIntArg(a.EndLine, 0)
	if err != nil {
		return tool.Result{Error: "end_line: " + err.Error()}, nil
	}
	contextLines, err := parseIntArg(a.ContextLines, 0)
	if err != nil {
		return tool.Result{Error: "context_lines: " + err.Error()}, nil
	}

	out, err := t.engine.Extract(ctx, search.ExtractParams{
		FilePath:     resolved,
		Line:         line,
		EndLine:      endLine,
		ContextLines: contextLines,
		Format:       a.Format,
	})
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}
	return formatOutput(out), nil
}
