package core

// Action represents the result of a node execution that determines flow control.
type Action string

// Actions routed by the agent flow.
const (
	ActionDefault Action = "default"
	ActionDone    Action = "done"
	ActionFailure Action = "failure"

	// Agent loop routing actions.
	ActionGenerate Action = "generate" // call the model again
	ActionTool     Action = "tool"     // dispatch the parsed tool call
	ActionComplete Action = "complete" // attempt_completion seen, finalize
)
