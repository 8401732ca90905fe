package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/probelabs/probe-agent/internal/tool"
)

const (
	listMaxEntries   = 500
	searchMaxMatches = 500
)

// skipDirs are never listed regardless of .gitignore contents.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".svn":         true,
	".hg":          true,
}

// ignoreMatcherFor loads the .gitignore at root, when present.
func ignoreMatcherFor(root string) gitignore.IgnoreMatcher {
	matcher, err := gitignore.NewGitIgnore(filepath.Join(root, ".gitignore"), root)
	if err != nil {
		return nil
	}
	return matcher
}

// ── listFiles ──

// ListFilesTool lists a directory, honouring .gitignore.
type ListFilesTool struct {
	confine *Confine
}

func NewListFilesTool(confine *Confine) *ListFilesTool {
	return &ListFilesTool{confine: confine}
}

func (t *ListFilesTool) Name() string { return "listFiles" }
func (t *ListFilesTool) Description() string {
	return "List the files and directories under a directory, respecting .gitignore."
}

func (t *ListFilesTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "directory", Type: "string", Description: "Directory to list, relative to the project root (default: project root)"},
	)
}

func (t *ListFilesTool) Init(_ context.Context) error { return nil }
func (t *ListFilesTool) Close() error                 { return nil }

type listFilesArgs struct {
	Directory string `json:"directory"`
}

func (t *ListFilesTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a listFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}

	root, err := t.confine.Resolve(a.Directory)
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}
	info, err := os.Stat(root)
	if err != nil {
		return tool.Result{Error: fmt.Sprintf("Error: cannot access %q: %v", a.Directory, err)}, nil
	}
	if !info.IsDir() {
		return tool.Result{Error: fmt.Sprintf("Error: %q is not a directory", a.Directory)}, nil
	}

	matcher := ignoreMatcherFor(t.confine.Workdir())
	entries, err := os.ReadDir(root)
	if err != nil {
		return tool.Result{Error: fmt.Sprintf("Error: reading %q: %v", a.Directory, err)}, nil
	}

	var lines []string
	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(root, name)
		if e.IsDir() && skipDirs[name] {
			continue
		}
		if matcher != nil && matcher.Match(full, e.IsDir()) {
			continue
		}
		if e.IsDir() {
			lines = append(lines, name+"/")
		} else {
			lines = append(lines, name)
		}
		if len(lines) >= listMaxEntries {
			lines = append(lines, fmt.Sprintf("... (truncated at %d entries)", listMaxEntries))
			break
		}
	}
	sort.Strings(lines)

	if len(lines) == 0 {
		return tool.Result{Output: "(empty directory)"}, nil
	}
	return tool.Result{Output: strings.Join(lines, "\n")}, nil
}

// ── searchFiles ──

// SearchFilesTool finds files by glob pattern.
type SearchFilesTool struct {
	confine *Confine
}

func NewSearchFilesTool(confine *Confine) *SearchFilesTool {
	return &SearchFilesTool{confine: confine}
}

func (t *SearchFilesTool) Name() string { return "searchFiles" }
func (t *SearchFilesTool) Description() string {
	return "Find files by name using a glob pattern, e.g. *.go or config.*."
}

func (t *SearchFilesTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "Glob pattern matched against file names", Required: true},
		tool.SchemaParam{Name: "directory", Type: "string", Description: "Directory to search from (default: project root)"},
		tool.SchemaParam{Name: "recursive", Type: "boolean", Description: "Descend into subdirectories (default true)"},
	)
}

func (t *SearchFilesTool) Init(_ context.Context) error { return nil }
func (t *SearchFilesTool) Close() error                 { return nil }

type searchFilesArgs struct {
	Pattern   string `json:"pattern"`
	Directory string `json:"directory"`
	Recursive string `json:"recursive"`
}

func (t *SearchFilesTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a searchFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return tool.Result{Error: "the pattern parameter is required"}, nil
	}

	root, err := t.confine.Resolve(a.Directory)
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}

	recursive := true
	if strings.TrimSpace(a.Recursive) != "" {
		recursive = parseBoolArg(a.Recursive)
	}

	matcher := ignoreMatcherFor(t.confine.Workdir())
	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if path != root && (skipDirs[d.Name()] || !recursive) {
				return fs.SkipDir
			}
			if matcher != nil && path != root && matcher.Match(path, true) {
				return fs.SkipDir
			}
			return nil
		}
		if matcher != nil && matcher.Match(path, false) {
			return nil
		}
		ok, _ := filepath.Match(a.Pattern, d.Name())
		if !ok {
			return nil
		}
		rel, relErr := filepath.Rel(t.confine.Workdir(), path)
		if relErr != nil {
			rel = path
		}
		matches = append(matches, rel)
		if len(matches) >= searchMaxMatches {
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return tool.Result{Error: fmt.Sprintf("Error: walking %q: %v", a.Directory, walkErr)}, nil
	}

	if len(matches) == 0 {
		return tool.Result{Output: fmt.Sprintf("No files matching %q", a.Pattern)}, nil
	}
	sort.Strings(matches)
	return tool.Result{Output: strings.Join(matches, "\n")}, nil
}
