// Package search wraps the external probe binary behind the three code-search
// operations the agent's tools consume. The agent core never parses probe's
// output; it forwards stdout/stderr verbatim to the model.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// defaultTimeout bounds a single probe invocation.
const defaultTimeout = 30 * time.Second

// Output is the raw result of one probe invocation.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// SearchParams drive a full-text/elastic code search.
type SearchParams struct {
	Query      string
	Path       string
	Exact      bool
	AllowTests bool
	MaxTokens  int
}

// QueryParams drive an AST-grep structural query.
type QueryParams struct {
	Pattern    string
	Path       string
	Language   string
	AllowTests bool
}

// ExtractParams drive code-block extraction around a file location.
type ExtractParams struct {
	FilePath     string
	Line         int
	EndLine      int
	ContextLines int
	Format       string
}

// Engine is the capability the built-in tools consume.
type Engine interface {
	Search(ctx context.Context, p SearchParams) (Output, error)
	Query(ctx context.Context, p QueryParams) (Output, error)
	Extract(ctx context.Context, p ExtractParams) (Output, error)
}

// Probe runs the probe binary. The binary name can be overridden with the
// PROBE_PATH environment variable (useful for tests and vendored builds).
type Probe struct {
	binary  string
	workdir string
	timeout time.Duration
}

// NewProbe creates an engine rooted at workdir.
func NewProbe(workdir string) *Probe {
	binary := os.Getenv("PROBE_PATH")
	if binary == "" {
		binary = "probe"
	}
	return &Probe{binary: binary, workdir: workdir, timeout: defaultTimeout}
}

func (p *Probe) Search(ctx context.Context, params SearchParams) (Output, error) {
	args := []string{"search", params.Query}
	args = append(args, p.pathArg(params.Path))
	if params.Exact {
		args = append(args, "--exact")
	}
	if params.AllowTests {
		args = append(args, "--allow-tests")
	}
	if params.MaxTokens > 0 {
		args = append(args, "--max-tokens", strconv.Itoa(params.MaxTokens))
	}
	return p.run(ctx, args)
}

func (p *Probe) Query(ctx context.Context, params QueryParams) (Output, error) {
	args := []string{"query", params.Pattern}
	args = append(args, p.pathArg(params.Path))
	if params.Language != "" {
		args = append(args, "--language", params.Language)
	}
	if params.AllowTests {
		args = append(args, "--allow-tests")
	}
	return p.run(ctx, args)
}

func (p *Probe) Extract(ctx context.Context, params ExtractParams) (Output, error) {
	target := params.FilePath
	if params.Line > 0 {
		target = fmt.Sprintf("%s:%d", target, params.Line)
		if params.EndLine > params.Line {
			target = fmt.Sprintf("%s-%d", target, params.EndLine)
		}
	}
	args := []string{"extract", target}
	if params.ContextLines > 0 {
		args = append(args, "--context", strconv.Itoa(params.ContextLines))
	}
	if params.Format != "" {
		args = append(args, "--format", params.Format)
	}
	return p.run(ctx, args)
}

// pathArg defaults the search path to the working directory.
func (p *Probe) pathArg(path string) string {
	if path != "" {
		return path
	}
	if p.workdir != "" {
		return p.workdir
	}
	return "."
}

// run executes the binary and captures both streams. A non-zero exit is not a
// Go error: the caller formats it for the model. Only spawn failures (binary
// missing, context cancelled) surface as errors.
func (p *Probe) run(ctx context.Context, args []string) (Output, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.binary, args...)
	if p.workdir != "" {
		cmd.Dir = p.workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		if runCtx.Err() != nil {
			return out, fmt.Errorf("probe %s timed out after %v", args[0], p.timeout)
		}
		return out, fmt.Errorf("running probe %s: %w", args[0], err)
	}
	return out, nil
}
