package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/probelabs/probe-agent/internal/tool"
)

// implementTimeout bounds a delegate run; code edits can be slow.
const implementTimeout = 10 * time.Minute

// ImplementTool delegates a code-change task to an external editor command
// (for example an aider invocation). The loop itself never edits files; the
// tool is registered only when the session allows edits.
type ImplementTool struct {
	command string // delegate executable
	args    []string
	workdir string
}

// NewImplementTool wires the delegate. command is the editor executable;
// extraArgs are prepended before the task text.
func NewImplementTool(command string, extraArgs []string, workdir string) *ImplementTool {
	return &ImplementTool{command: command, args: extraArgs, workdir: workdir}
}

func (t *ImplementTool) Name() string { return "implement" }
func (t *ImplementTool) Description() string {
	return "Delegate a code-change task to the configured editor tool. Use for tasks that require modifying files."
}

func (t *ImplementTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "task", Type: "string", Description: "Natural-language description of the change to implement", Required: true},
		tool.SchemaParam{Name: "autoCommits", Type: "boolean", Description: "Let the delegate commit its changes"},
	)
}

func (t *ImplementTool) Init(_ context.Context) error { return nil }
func (t *ImplementTool) Close() error                 { return nil }

type implementArgs struct {
	Task        string `json:"task"`
	AutoCommits string `json:"autoCommits"`
}

func (t *ImplementTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a implementArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Task) == "" {
		return tool.Result{Error: "the task parameter is required"}, nil
	}
	if t.command == "" {
		return tool.Result{Error: "Error: no editor delegate is configured for this session"}, nil
	}

	cmdArgs := append([]string(nil), t.args...)
	if parseBoolArg(a.AutoCommits) {
		cmdArgs = append(cmdArgs, "--auto-commits")
	} else {
		cmdArgs = append(cmdArgs, "--no-auto-commits")
	}
	cmdArgs = append(cmdArgs, "--message", a.Task)

	runCtx, cancel := context.WithTimeout(ctx, implementTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.command, cmdArgs...)
	if t.workdir != "" {
		cmd.Dir = t.workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if s := strings.TrimSpace(stderr.String()); s != "" {
		if out != "" {
			out += "\n"
		}
		out += s
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return tool.Result{Error: fmt.Sprintf("Error: delegate timed out after %v\n%s", implementTimeout, out)}, nil
		}
		return tool.Result{Output: out, Error: fmt.Sprintf("Error: delegate failed: %v", err)}, nil
	}
	return tool.Result{Output: out}, nil
}

func (t *ImplementTool) Metadata() tool.Metadata {
	return tool.Metadata{Kind: tool.KindNative, MutatesRepo: true}
}
