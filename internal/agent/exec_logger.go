package agent

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/probelabs/probe-agent/internal/bashperm"
	"github.com/probelabs/probe-agent/internal/llm"
)

// execLogTruncate caps a single logged payload.
const execLogTruncate = 4000

// ExecLogger writes an audit trail of one session to a markdown file: every
// assistant turn, every tool call with its governed result, and every bash
// permission decision. Thread-safe; the bash checker invokes it from tool
// execution while the loop logs turns.
type ExecLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewExecLogger creates a logger writing to path. The file is truncated.
func NewExecLogger(path string) (*ExecLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create exec log: %w", err)
	}
	return &ExecLogger{file: f, path: path}, nil
}

// Path returns the log file location.
func (l *ExecLogger) Path() string { return l.path }

// StartSession writes the session header.
func (l *ExecLogger) StartSession(question string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.file.Truncate(0)
	l.file.Seek(0, 0)

	l.writef("# Agent execution log\n\n")
	l.writef("**Time**: %s  \n", time.Now().Format("2006-01-02 15:04:05"))
	l.writef("**Question**: %s\n\n---\n\n", question)
}

// LogAssistant records one model turn.
func (l *ExecLogger) LogAssistant(iteration int, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writef("## Iteration %d — assistant\n\n", iteration)
	l.writef("```\n%s\n```\n\n---\n\n", clip(text, execLogTruncate))
}

// LogToolCall records one dispatched tool with its arguments and governed
// result.
func (l *ExecLogger) LogToolCall(iteration int, name, args, result string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writef("## Iteration %d — tool `%s`\n\n", iteration, name)
	if args != "" && args != "{}" {
		l.writef("<details>\n<summary>arguments</summary>\n\n```json\n%s\n```\n\n</details>\n\n", clip(args, execLogTruncate))
	}
	l.writef("<details>\n<summary>result</summary>\n\n```\n%s\n```\n\n</details>\n\n---\n\n", clip(result, execLogTruncate))
}

// BashAudit returns an AuditSink recording every shell permission decision.
func (l *ExecLogger) BashAudit() bashperm.AuditSink {
	return func(d bashperm.Decision) {
		l.mu.Lock()
		defer l.mu.Unlock()

		verdict := "denied"
		if d.Allowed {
			verdict = "allowed"
		}
		l.writef("> bash %s: `%s` (head=%s complex=%v", verdict, d.Command, d.ParsedHead, d.IsComplex)
		if d.MatchedPattern != "" {
			l.writef(" pattern=%s", d.MatchedPattern)
		}
		l.writef(") — %s\n\n", d.Reason)
	}
}

// EndSession writes the closing summary.
func (l *ExecLogger) EndSession(iterations int, result string, usage llm.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writef("## Summary\n\n")
	l.writef("- **Iterations**: %d\n", iterations)
	l.writef("- **Tokens**: %d prompt + %d completion = %d total\n",
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	l.writef("- **Answer length**: %d characters\n", len([]rune(result)))
	l.writef("- **Finished**: %s\n", time.Now().Format("2006-01-02 15:04:05"))
}

// Close closes the underlying file.
func (l *ExecLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *ExecLogger) writef(format string, args ...any) {
	fmt.Fprintf(l.file, format, args...)
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "\n... (truncated)"
}
