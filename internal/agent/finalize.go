package agent

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/probelabs/probe-agent/internal/core"
	"github.com/probelabs/probe-agent/internal/schema"
	"github.com/probelabs/probe-agent/internal/tool"
	"github.com/probelabs/probe-agent/internal/tool/builtin"
)

// finalizeNode cleans the completion payload, validates it against the
// session schema when one is set, and runs the bounded self-repair loop on
// failure.
type finalizeNode struct {
	session *Session
}

type finalizePrep struct {
	raw string
}

type finalizeResult struct {
	final string
	err   error
}

func (n *finalizeNode) Prep(state *loopState) (finalizePrep, bool) {
	return finalizePrep{raw: state.result}, true
}

func (n *finalizeNode) Exec(ctx context.Context, prep finalizePrep) (finalizeResult, error) {
	final, err := n.session.finalize(ctx, prep.raw)
	return finalizeResult{final: final, err: err}, nil
}

func (n *finalizeNode) ExecFallback(err error) finalizeResult {
	return finalizeResult{err: err}
}

func (n *finalizeNode) Post(state *loopState, prep finalizePrep, result finalizeResult) core.Action {
	if result.err != nil {
		state.err = result.err
		return core.ActionFailure
	}
	state.result = result.final
	return core.ActionDone
}

// finalize applies cleaning, schema validation, and self-repair to the raw
// attempt_completion payload.
func (s *Session) finalize(ctx context.Context, raw string) (string, error) {
	cleaned := schema.Clean(raw)
	if s.valid == nil || s.opts.DisableJSONValidation {
		return cleaned, nil
	}

	out, err := s.valid.Validate(cleaned)
	if err == nil {
		return s.checkMermaid(ctx, out)
	}

	// Bounded self-repair: a fresh isolated sub-agent per attempt.
	invalid := cleaned
	for attempt := 1; attempt <= schema.MaxRepairAttempts; attempt++ {
		log.Printf("[Agent] Schema validation failed (attempt %d/%d): %v",
			attempt, schema.MaxRepairAttempts, firstLine(err.Error()))

		prompt := schema.BuildRepairPrompt(invalid, s.valid.SchemaJSON(), err, attempt)
		repaired, rerr := s.runRepair(ctx, schema.JSONRepairSystemPrompt, prompt)
		if rerr != nil {
			return "", rerr
		}

		invalid = schema.Clean(repaired)
		out, err = s.valid.Validate(invalid)
		if err == nil {
			return s.checkMermaid(ctx, out)
		}
	}
	return "", err
}

// checkMermaid validates Mermaid diagrams embedded in the JSON payload and
// repairs the first broken one through the Mermaid specialist.
func (s *Session) checkMermaid(ctx context.Context, payload string) (string, error) {
	if s.opts.DisableMermaidValidation {
		return payload, nil
	}
	var instance any
	if json.Unmarshal([]byte(payload), &instance) != nil {
		return payload, nil
	}

	for path, diagram := range schema.FindMermaidInJSON(instance) {
		verr := schema.ValidateMermaid(diagram)
		if verr == nil {
			continue
		}

		fixed := diagram
		for attempt := 1; attempt <= schema.MaxRepairAttempts; attempt++ {
			log.Printf("[Agent] Mermaid at %s invalid (attempt %d/%d): %v",
				path, attempt, schema.MaxRepairAttempts, verr)
			repaired, rerr := s.runRepair(ctx, schema.MermaidRepairSystemPrompt,
				schema.BuildMermaidRepairPrompt(fixed, verr, attempt))
			if rerr != nil {
				return "", rerr
			}
			fixed = strings.TrimSpace(stripFence(repaired))
			if verr = schema.ValidateMermaid(fixed); verr == nil {
				break
			}
		}
		if verr != nil {
			return "", verr
		}
		// Substitute the repaired diagram back. Diagram strings are unique
		// enough within one payload for a literal swap.
		quotedOld, _ := json.Marshal(diagram)
		quotedNew, _ := json.Marshal(fixed)
		payload = strings.Replace(payload, string(quotedOld), string(quotedNew), 1)
	}
	return payload, nil
}

// runRepair dispatches one correction prompt to a freshly constructed,
// isolated sub-agent. The sub-agent has its own session id, no tools beyond
// attempt_completion, and both recursion guards set, so it can never spawn
// further repairs.
func (s *Session) runRepair(ctx context.Context, systemPrompt, prompt string) (string, error) {
	reg := tool.NewRegistry()
	reg.Register(builtin.NewAttemptCompletionTool())

	sub, err := NewSession(Options{
		Client:                   s.opts.Client,
		Registry:                 reg,
		Model:                    s.opts.Model,
		Persona:                  systemPrompt,
		MaxIterations:            3,
		DisableJSONValidation:    true,
		DisableMermaidValidation: true,
		Debug:                    s.opts.Debug,
	})
	if err != nil {
		return "", err
	}
	repaired, err := sub.Answer(ctx, prompt)
	s.usage.Add(sub.usage)
	return repaired, err
}

// stripFence removes a surrounding ``` fence (bare or ```mermaid) from a
// repair response. Returns the input unchanged when it is not fenced.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	body := t[nl+1:]
	end := strings.LastIndex(body, "```")
	if end < 0 {
		return s
	}
	return body[:end]
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
