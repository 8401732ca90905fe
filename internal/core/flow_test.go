package core

import (
	"context"
	"errors"
	"testing"
)

// testState counts node visits so tests can assert routing behaviour.
type testState struct {
	visits []string
}

// stepNode is a minimal BaseNode whose Exec succeeds after failCount failures.
type stepNode struct {
	name      string
	action    Action
	failsLeft int
}

func (n *stepNode) Prep(state *testState) (string, bool) {
	return n.name, true
}

func (n *stepNode) Exec(_ context.Context, prep string) (string, error) {
	if n.failsLeft > 0 {
		n.failsLeft--
		return "", errors.New("transient")
	}
	return prep + "-ok", nil
}

func (n *stepNode) Post(state *testState, _ string, result string) Action {
	state.visits = append(state.visits, result)
	return n.action
}

func (n *stepNode) ExecFallback(err error) string {
	return "fallback: " + err.Error()
}

func TestFlow_RoutesThroughSuccessors(t *testing.T) {
	first := NewNode[testState, string, string](&stepNode{name: "first", action: ActionTool}, 0)
	second := NewNode[testState, string, string](&stepNode{name: "second", action: ActionDone}, 0)
	first.AddSuccessor(second, ActionTool)

	flow := NewFlow[testState](first)
	state := &testState{}
	action := flow.Run(context.Background(), state)

	if action != ActionDone {
		t.Fatalf("expected ActionDone, got %s", action)
	}
	if len(state.visits) != 2 || state.visits[0] != "first-ok" || state.visits[1] != "second-ok" {
		t.Fatalf("unexpected visit order: %v", state.visits)
	}
}

func TestNode_RetriesThenSucceeds(t *testing.T) {
	n := NewNode[testState, string, string](&stepNode{name: "flaky", action: ActionDone, failsLeft: 2}, 2)
	state := &testState{}
	action := n.Run(context.Background(), state)

	if action != ActionDone {
		t.Fatalf("expected ActionDone, got %s", action)
	}
	if state.visits[0] != "flaky-ok" {
		t.Fatalf("expected success after retries, got %q", state.visits[0])
	}
}

func TestNode_FallbackAfterExhaustedRetries(t *testing.T) {
	n := NewNode[testState, string, string](&stepNode{name: "broken", action: ActionDone, failsLeft: 10}, 1)
	state := &testState{}
	n.Run(context.Background(), state)

	if len(state.visits) != 1 || state.visits[0] != "fallback: transient" {
		t.Fatalf("expected fallback result, got %v", state.visits)
	}
}

func TestFlow_CancelledContextAborts(t *testing.T) {
	// A node that routes to itself forever; cancellation must break the cycle.
	n := NewNode[testState, string, string](&stepNode{name: "loop", action: ActionTool}, 0)
	n.AddSuccessor(n, ActionTool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flow := NewFlow[testState](n)
	if action := flow.Run(ctx, &testState{}); action != ActionFailure {
		t.Fatalf("expected ActionFailure on cancelled context, got %s", action)
	}
}

func TestFlow_IterationCap(t *testing.T) {
	n := NewNode[testState, string, string](&stepNode{name: "spin", action: ActionTool}, 0)
	n.AddSuccessor(n, ActionTool)

	flow := NewFlow[testState](n)
	state := &testState{}
	if action := flow.Run(context.Background(), state); action != ActionFailure {
		t.Fatalf("expected ActionFailure at iteration cap, got %s", action)
	}
	if len(state.visits) != maxFlowIterations {
		t.Fatalf("expected %d visits, got %d", maxFlowIterations, len(state.visits))
	}
}
