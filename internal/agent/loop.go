package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/probelabs/probe-agent/internal/core"
	"github.com/probelabs/probe-agent/internal/llm"
	"github.com/probelabs/probe-agent/internal/parser"
	"github.com/probelabs/probe-agent/internal/tool"
)

// loopState is the shared state of one answer cycle. Single-goroutine, per
// the flow contract.
type loopState struct {
	session *Session

	iteration int
	lastCall  *parser.ToolCall

	// Stuck tracking across assistant turns.
	prevStuck bool
	prevText  string

	// Images already attached this session, by absolute path.
	seenImages map[string]bool

	result string
	err    error
}

// ── generate ──

// generateNode calls the model, appends the assistant turn, and routes on
// what the turn contains: a tool call, a completion, or a parse fault.
type generateNode struct {
	session *Session
}

type generatePrep struct {
	messages []llm.Message
}

// generateResult carries the response or the transport error that survived
// the retry budget (ExecFallback cannot reach state directly).
type generateResult struct {
	resp llm.Response
	err  error
}

func (n *generateNode) Prep(state *loopState) (generatePrep, bool) {
	if state.iteration >= n.session.opts.MaxIterations {
		state.err = ErrIterationBudget
		return generatePrep{}, false
	}
	state.iteration++
	return generatePrep{messages: n.session.history.Messages()}, true
}

func (n *generateNode) Exec(ctx context.Context, prep generatePrep) (generateResult, error) {
	resp, err := n.session.opts.Client.Generate(ctx, prep.messages, llm.Options{Model: n.session.opts.Model})
	if err != nil {
		return generateResult{}, err
	}
	return generateResult{resp: resp}, nil
}

func (n *generateNode) ExecFallback(err error) generateResult {
	return generateResult{err: &TransportError{Cause: err}}
}

func (n *generateNode) Post(state *loopState, prep generatePrep, result generateResult) core.Action {
	if state.err != nil {
		return core.ActionFailure
	}
	if result.err != nil {
		state.err = result.err
		return core.ActionFailure
	}

	s := n.session
	s.usage.Add(result.resp.Usage)
	text := result.resp.Text
	s.history.AddAssistant(text)
	if s.opts.Logger != nil {
		s.opts.Logger.LogAssistant(state.iteration, text)
	}

	// Stuck check: exact repetition of the previous turn counts as stuck
	// even when no semantic pattern matches.
	stuck := IsStuck(text) || (state.prevText != "" && text == state.prevText)
	if stuck && state.prevStuck {
		log.Printf("[Agent] Stuck loop detected at iteration %d", state.iteration)
		state.err = ErrStuckLoop
		return core.ActionFailure
	}
	state.prevStuck = stuck
	state.prevText = text

	s.compactIfNeeded()

	call, err := parser.Parse(text, s.opts.Registry.Known, s.opts.Registry.IsMCP)
	if err != nil {
		// Malformed tool XML: feed the hint back and let the model retry.
		s.debugf("parse fault: %v", err)
		s.history.AddSyntheticUser(fmt.Sprintf("Error: %s", err.Error()))
		return core.ActionGenerate
	}
	if call == nil {
		if stuck {
			// A stuck turn is not an answer. Nudge once; a second stuck
			// turn terminates above before parsing.
			s.history.AddSyntheticUser("You appear to be stuck. Take a different approach, or finish with attempt_completion if the question is answered.")
			return core.ActionGenerate
		}
		// No tool call at all: completion without attempt_completion.
		state.result = text
		return core.ActionComplete
	}
	if call.Thinking != "" {
		s.debugf("thinking: %s", call.Thinking)
	}

	if t, ok := s.opts.Registry.Get(call.Name); ok && tool.MetadataOf(t).Terminal {
		state.result = call.Params["result"]
		return core.ActionComplete
	}

	state.lastCall = call
	return core.ActionTool
}

// ── dispatch ──

// dispatchNode executes the parsed tool call and appends its governed
// result as a synthetic user turn.
type dispatchNode struct {
	session *Session
}

type dispatchPrep struct {
	call     *parser.ToolCall
	resolved tool.Tool // nil when unknown
	denied   bool      // not in the allowed set
}

type dispatchResult struct {
	text   string
	images []string // validated absolute paths to attach
}

func (n *dispatchNode) Prep(state *loopState) (dispatchPrep, bool) {
	call := state.lastCall
	state.lastCall = nil
	if call == nil {
		return dispatchPrep{}, false
	}

	s := n.session
	if s.opts.Allowed != nil && !s.opts.Allowed.IsEnabled(call.Name) {
		return dispatchPrep{call: call, denied: true}, true
	}
	resolved, _ := s.opts.Registry.Get(call.Name)
	return dispatchPrep{call: call, resolved: resolved}, true
}

func (n *dispatchNode) Exec(ctx context.Context, prep dispatchPrep) (dispatchResult, error) {
	s := n.session

	if prep.denied {
		return dispatchResult{text: fmt.Sprintf("Error: tool %q is not permitted in this session.", prep.call.Name)}, nil
	}
	if prep.resolved == nil {
		return dispatchResult{text: fmt.Sprintf("Error: tool %q is not available.", prep.call.Name)}, nil
	}

	result, err := prep.resolved.Execute(ctx, prep.call.Args)
	if err != nil {
		// Tool implementation faults are recoverable: the model sees them.
		result = tool.Result{Error: fmt.Sprintf("Error: %v", err)}
	}

	text := result.Output
	if result.Error != "" {
		msg := result.Error
		if !strings.HasPrefix(msg, "Error") {
			msg = "Error: " + msg
		}
		if text != "" {
			text += "\n\n" + msg
		} else {
			text = msg
		}
	}

	governed := s.governor.Govern(text, tool.MetadataOf(prep.resolved).MaxOutput)
	text = governed.Text
	if governed.Truncated {
		s.debugf("tool %s output truncated: %d tokens, spill=%s",
			prep.call.Name, governed.OriginalTokens, governed.SpillPath)
	}

	images := append([]string(nil), result.Images...)
	images = append(images, harvestImagePaths(result.Output, s.opts.Workdir, nil)...)

	return dispatchResult{text: text, images: images}, nil
}

func (n *dispatchNode) ExecFallback(err error) dispatchResult {
	return dispatchResult{text: fmt.Sprintf("Error: %v", err)}
}

func (n *dispatchNode) Post(state *loopState, prep dispatchPrep, result dispatchResult) core.Action {
	if prep.call == nil {
		return core.ActionGenerate
	}
	s := n.session

	parts := []llm.ContentPart{{Type: llm.PartText, Text: result.text}}
	for _, p := range result.images {
		if state.seenImages[p] {
			continue
		}
		part, err := imagePart(p)
		if err != nil {
			s.debugf("skipping image %q: %v", p, err)
			continue
		}
		state.seenImages[p] = true
		parts = append(parts, part)
	}

	if len(parts) == 1 {
		s.history.AddToolResult(prep.call.Name, result.text)
	} else {
		s.history.AddToolResultParts(prep.call.Name, parts)
	}
	if s.opts.Logger != nil {
		s.opts.Logger.LogToolCall(state.iteration, prep.call.Name, string(prep.call.Args), result.text)
	}

	if warning := s.freq.Observe(prep.call.Name, prep.call.Args); warning != "" {
		log.Printf("[Agent] Repetition nudge for %s", prep.call.Name)
		s.history.AddSyntheticUser(warning)
	}

	return core.ActionGenerate
}
