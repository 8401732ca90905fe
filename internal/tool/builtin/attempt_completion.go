package builtin

import (
	"context"
	"encoding/json"

	"github.com/probelabs/probe-agent/internal/tool"
)

// AttemptCompletionTool terminates the loop. The dispatcher intercepts it
// before Execute: the result payload goes to finalization (cleaning, schema
// validation) instead of back into the conversation. Execute exists only to
// satisfy the interface and echoes the payload for defensive callers.
type AttemptCompletionTool struct{}

func NewAttemptCompletionTool() *AttemptCompletionTool {
	return &AttemptCompletionTool{}
}

func (t *AttemptCompletionTool) Name() string { return "attempt_completion" }
func (t *AttemptCompletionTool) Description() string {
	return "Present the final answer and end the session. Call this exactly once, when the question is fully answered."
}

func (t *AttemptCompletionTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "result", Type: "string", Description: "The complete final answer", Required: true},
	)
}

func (t *AttemptCompletionTool) Init(_ context.Context) error { return nil }
func (t *AttemptCompletionTool) Close() error                 { return nil }

func (t *AttemptCompletionTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: "parsing arguments: " + err.Error()}, nil
	}
	return tool.Result{Output: a.Result}, nil
}

func (t *AttemptCompletionTool) Metadata() tool.Metadata {
	return tool.Metadata{Kind: tool.KindNative, Terminal: true}
}
