package core

import (
	"context"
	"log"
)

// maxFlowIterations is an independent safety cap on node transitions per Run
// call. It guards against successor graphs that would cycle past the
// application-level iteration budget.
const maxFlowIterations = 500

// Flow runs a graph of connected nodes to completion: starting at one node,
// each Run's action selects the node's successor until no successor is
// wired. It is a plain runner; routing lives entirely on the nodes.
type Flow[State any] struct {
	start Workflow[State]
}

// NewFlow creates a flow beginning at start.
func NewFlow[State any](start Workflow[State]) *Flow[State] {
	return &Flow[State]{start: start}
}

// Run executes the node chain and returns the last action taken. A cancelled
// context or the transition cap aborts with ActionFailure.
func (f *Flow[State]) Run(ctx context.Context, state *State) Action {
	current := f.start
	if current == nil {
		log.Println("[Flow] Warning: started with no start node")
		return ActionFailure
	}

	last := ActionDone
	for i := 0; current != nil; i++ {
		if i >= maxFlowIterations {
			log.Printf("[Flow] Warning: maxFlowIterations (%d) reached, aborting", maxFlowIterations)
			return ActionFailure
		}
		if ctx.Err() != nil {
			log.Printf("[Flow] Context cancelled: %v", ctx.Err())
			return ActionFailure
		}

		last = current.Run(ctx, state)
		current = current.GetSuccessor(last)
	}
	return last
}
