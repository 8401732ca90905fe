package core

import (
	"context"
	"log"
)

// Node wraps a BaseNode implementation with retry logic and successor routing.
// It implements the Workflow interface.
type Node[State any, PrepResult any, ExecResult any] struct {
	node       BaseNode[State, PrepResult, ExecResult]
	maxRetries int
	successors map[Action]Workflow[State]
}

// NewNode creates a new Node wrapping the given BaseNode implementation.
// maxRetries counts additional attempts after the first (0 = no retry).
func NewNode[State any, PrepResult any, ExecResult any](
	basenode BaseNode[State, PrepResult, ExecResult],
	maxRetries int,
) *Node[State, PrepResult, ExecResult] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Node[State, PrepResult, ExecResult]{
		node:       basenode,
		maxRetries: maxRetries,
		successors: make(map[Action]Workflow[State]),
	}
}

// executeWithRetry runs Exec with retry logic.
func (n *Node[State, PrepResult, ExecResult]) executeWithRetry(ctx context.Context, input PrepResult) (ExecResult, error) {
	var result ExecResult
	var err error

	for i := 0; i <= n.maxRetries; i++ {
		// Check context cancellation before each attempt
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result, err = n.node.Exec(ctx, input)
		if err == nil {
			return result, nil
		}
		if i < n.maxRetries {
			log.Printf("[Node] Exec retry %d/%d, error: %v", i+1, n.maxRetries, err)
		}
	}
	return result, err
}

// Run implements Workflow.Run — executes the full Prep -> Exec -> Post lifecycle.
func (n *Node[State, PrepResult, ExecResult]) Run(ctx context.Context, state *State) Action {
	prep, ok := n.node.Prep(state)
	if !ok {
		var zero ExecResult
		return n.node.Post(state, prep, zero)
	}

	result, err := n.executeWithRetry(ctx, prep)
	if err != nil {
		result = n.node.ExecFallback(err)
	}
	return n.node.Post(state, prep, result)
}

// AddSuccessor connects a successor workflow for a given action.
func (n *Node[State, PrepResult, ExecResult]) AddSuccessor(
	workflow Workflow[State], action ...Action,
) Workflow[State] {
	if workflow == nil {
		return workflow
	}
	if len(action) == 0 {
		n.successors[ActionDefault] = workflow
	} else {
		n.successors[action[0]] = workflow
	}
	return workflow
}

// GetSuccessor returns the successor for the given action.
func (n *Node[State, PrepResult, ExecResult]) GetSuccessor(action Action) Workflow[State] {
	return n.successors[action]
}
