package core

import "context"

// BaseNode defines the interface for all nodes in the agent flow.
// It follows the three-phase execution model: Prep -> Exec -> Post.
//
// Type parameters:
//   - State: the shared state passed through the flow
//   - PrepResult: the type returned by Prep and consumed by Exec
//   - ExecResult: the type returned by Exec and consumed by Post
type BaseNode[State any, PrepResult any, ExecResult any] interface {
	// Prep reads from shared state and builds the input for Exec.
	// Returning (zero, false) skips Exec; Post receives the zero result.
	Prep(state *State) (PrepResult, bool)

	// Exec performs the core logic. It must not mutate state — all state
	// changes happen in Post, keeping the single-goroutine contract obvious.
	Exec(ctx context.Context, prep PrepResult) (ExecResult, error)

	// Post consumes the result and determines the next action.
	Post(state *State, prep PrepResult, result ExecResult) Action

	// ExecFallback provides a default result if Exec fails after all retries.
	ExecFallback(err error) ExecResult
}

// Workflow is a unit of execution that can be connected to other workflows.
// Node implements it; Flow consumes a graph of them.
type Workflow[State any] interface {
	// Run executes the workflow and returns an action for routing.
	Run(ctx context.Context, state *State) Action

	// GetSuccessor returns the successor workflow for a given action.
	GetSuccessor(action Action) Workflow[State]

	// AddSuccessor connects a successor workflow for a specific action.
	// Returns the successor for chaining.
	AddSuccessor(successor Workflow[State], action ...Action) Workflow[State]
}
