package agent

import "errors"

// Terminal failures of an answer cycle. Everything else the loop encounters
// (parse failures, permission denials, tool errors) is fed back to the model
// as a tool result and never escapes.
var (
	// ErrIterationBudget means the loop hit its tool-iteration cap without
	// the model calling attempt_completion.
	ErrIterationBudget = errors.New("agent: iteration budget exceeded")

	// ErrStuckLoop means two consecutive assistant turns were classified as
	// stuck by the semantic detector.
	ErrStuckLoop = errors.New("agent: stuck loop detected")
)

// TransportError wraps an LLM transport failure that survived the per-turn
// retry budget. Terminal.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return "agent: llm transport: " + e.Cause.Error() }
func (e *TransportError) Unwrap() error { return e.Cause }
