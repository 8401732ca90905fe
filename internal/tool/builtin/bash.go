package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/probelabs/probe-agent/internal/bashperm"
	"github.com/probelabs/probe-agent/internal/tool"
)

const (
	bashDefaultTimeout = 30 * time.Second
	bashTimeoutCeiling = 10 * time.Minute
	// termGrace is how long a signalled subprocess gets before SIGTERM.
	termGrace = 5 * time.Second
)

// BashTool executes shell commands after they pass the permission checker.
type BashTool struct {
	checker *bashperm.Checker
	workdir string
}

func NewBashTool(checker *bashperm.Checker, workdir string) *BashTool {
	return &BashTool{checker: checker, workdir: workdir}
}

func (t *BashTool) Name() string { return "bash" }
func (t *BashTool) Description() string {
	return "Run a shell command in the project directory. Only read-only commands are permitted unless the operator has extended the allow list."
}

func (t *BashTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "command", Type: "string", Description: "Shell command to execute", Required: true},
		tool.SchemaParam{Name: "timeout", Type: "integer", Description: "Timeout in seconds (default 30, capped at 600)"},
	)
}

func (t *BashTool) Init(_ context.Context) error { return nil }
func (t *BashTool) Close() error                 { return nil }

type bashArgs struct {
	Command string `json:"command"`
	Timeout string `json:"timeout"`
}

func (t *BashTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a bashArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Command) == "" {
		return tool.Result{Error: "the command parameter is required"}, nil
	}

	decision := t.checker.Check(a.Command)
	if !decision.Allowed {
		return tool.Result{
			Error: fmt.Sprintf("Error: %s. Adjust the command to a read-only alternative, or ask the operator to extend the allow list.", decision.Reason),
		}, nil
	}

	timeout := bashDefaultTimeout
	if secs, err := parseIntArg(a.Timeout, 0); err != nil {
		return tool.Result{Error: "timeout: " + err.Error()}, nil
	} else if secs > 0 {
		timeout = time.Duration(secs) * time.Second
		if timeout > bashTimeoutCeiling {
			timeout = bashTimeoutCeiling
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", a.Command)
	if t.workdir != "" {
		cmd.Dir = t.workdir
	}
	// Interrupt first so well-behaved tools can flush; escalate after the
	// grace period.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = termGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	combined := strings.TrimSpace(stdout.String())
	if s := strings.TrimSpace(stderr.String()); s != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += s
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return tool.Result{Error: fmt.Sprintf("Error: command timed out after %v\n%s", timeout, combined)}, nil
		}
		return tool.Result{Output: combined, Error: fmt.Sprintf("Error: command failed: %v", err)}, nil
	}
	return tool.Result{Output: combined}, nil
}
