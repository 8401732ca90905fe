package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/probelabs/probe-agent/internal/core"
	"github.com/probelabs/probe-agent/internal/governor"
	"github.com/probelabs/probe-agent/internal/llm"
	"github.com/probelabs/probe-agent/internal/schema"
	"github.com/probelabs/probe-agent/internal/session"
	"github.com/probelabs/probe-agent/internal/tool"
)

// Defaults for a session when Options leaves the knob zero.
const (
	DefaultMaxIterations = 30
	// defaultContextTokens is the assumed model window when the caller does
	// not supply one. Compaction triggers at 75% of the window.
	defaultContextTokens = 128000
	// llmRetries is the per-turn transport retry budget.
	llmRetries = 2
)

// Options configures a Session. Client and Registry are required; everything
// else has a working default.
type Options struct {
	Client   llm.Client
	Registry *tool.Registry
	Workdir  string

	Allowed       *tool.AllowedSet // nil = all tools enabled
	Persona       string           // preamble text, already resolved
	ExtraPrompt   string           // caller's custom system prompt fragment
	Model         string
	MaxIterations int
	MaxOutput     int // governor limit per tool result; 0 = governor default

	// SchemaJSON, when non-empty, makes the final answer validate against
	// this JSON Schema, with the bounded self-repair loop on failure.
	// Validation is strict by default: object schemas reject undeclared
	// properties. LenientSchema keeps the schema exactly as authored.
	SchemaJSON    string
	LenientSchema bool

	ContextTokens int // model context window; 0 = defaultContextTokens

	// Recursion guards, set on repair sub-agents so they can never spawn
	// further repairs.
	DisableJSONValidation    bool
	DisableMermaidValidation bool

	Logger *ExecLogger // optional audit log
	Debug  bool
}

// Session drives answer cycles over one conversation. Not safe for
// concurrent use: one answer cycle at a time.
type Session struct {
	id       string
	opts     Options
	history  *session.History
	governor *governor.Governor
	valid    *schema.Validator
	freq     *freqDetector
	usage    llm.Usage
}

// NewSession builds a session with a fresh UUID. The system prompt is
// deferred until the first Answer call so MCP tools registered after
// construction still render into it.
func NewSession(opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("agent: Options.Client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("agent: Options.Registry is required")
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.ContextTokens <= 0 {
		opts.ContextTokens = defaultContextTokens
	}

	s := &Session{
		id:       uuid.NewString(),
		opts:     opts,
		governor: governor.New(uuid.NewString(), opts.MaxOutput),
		freq:     newFreqDetector(),
	}

	if opts.SchemaJSON != "" && !opts.DisableJSONValidation {
		v, err := schema.NewValidator(opts.SchemaJSON, !opts.LenientSchema)
		if err != nil {
			return nil, fmt.Errorf("agent: compiling output schema: %w", err)
		}
		s.valid = v
	}
	return s, nil
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// History exposes the running conversation, mainly for tests and callers
// that persist sessions.
func (s *Session) History() *session.History { return s.history }

// Usage returns the accumulated token counters across every model turn of
// the session, including any repair sub-agents it dispatched.
func (s *Session) Usage() llm.Usage { return s.usage }

// compactThreshold is the token estimate above which the loop compacts
// between iterations: model context minus 25%.
func (s *Session) compactThreshold() int {
	return s.opts.ContextTokens * 3 / 4
}

// Answer drives one question to completion. imagePaths are optional
// attachments sent with the question. Returns the validated final payload,
// or a terminal error (ErrIterationBudget, ErrStuckLoop, *TransportError,
// context cancellation).
func (s *Session) Answer(ctx context.Context, question string, imagePaths ...string) (string, error) {
	if s.history == nil {
		system := BuildSystemPrompt(
			s.opts.Persona, s.opts.Registry, s.opts.Allowed,
			s.opts.SchemaJSON, s.opts.Workdir, s.opts.ExtraPrompt)
		s.history = session.NewHistory(system)
	}

	if s.opts.Logger != nil {
		s.opts.Logger.StartSession(question)
	}

	parts := []llm.ContentPart{{Type: llm.PartText, Text: question}}
	for _, p := range imagePaths {
		part, err := imagePart(p)
		if err != nil {
			return "", fmt.Errorf("agent: attaching %q: %w", p, err)
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		s.history.AddUser(question)
	} else {
		s.history.AddUserParts(parts)
	}

	state := &loopState{session: s, seenImages: make(map[string]bool)}

	generate := core.NewNode[loopState, generatePrep, generateResult](&generateNode{session: s}, llmRetries)
	dispatch := core.NewNode[loopState, dispatchPrep, dispatchResult](&dispatchNode{session: s}, 0)
	finalize := core.NewNode[loopState, finalizePrep, finalizeResult](&finalizeNode{session: s}, 0)

	generate.AddSuccessor(generate, core.ActionGenerate)
	generate.AddSuccessor(dispatch, core.ActionTool)
	generate.AddSuccessor(finalize, core.ActionComplete)
	dispatch.AddSuccessor(generate, core.ActionGenerate)

	flow := core.NewFlow[loopState](generate)
	flow.Run(ctx, state)

	if s.opts.Logger != nil {
		s.opts.Logger.EndSession(state.iteration, state.result, s.usage)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("agent: cancelled: %w", err)
	}
	if state.err != nil {
		return "", state.err
	}
	return state.result, nil
}

// Cancel-safety note: the flow checks ctx between nodes and every node's
// Exec passes ctx down to its suspension point (LLM call, subprocess, MCP
// call), so cancellation lands before the next suspension is awaited and
// the history is left with a complete last turn.

// compactIfNeeded folds old segments when the estimated conversation size
// crosses the threshold.
func (s *Session) compactIfNeeded() {
	est := 0
	for _, m := range s.history.Messages() {
		est += governor.EstimateTokens(m.Text())
	}
	if est <= s.compactThreshold() {
		return
	}
	msgs, stats := session.Compact(s.history.Messages(), session.DefaultKeepSegments)
	s.history.Replace(msgs)
	log.Printf("[Agent] Compacted history: %d -> %d messages, ~%d tokens saved",
		stats.OriginalCount, stats.CompactedCount, stats.TokensSaved)
}

func (s *Session) debugf(format string, args ...any) {
	if s.opts.Debug {
		log.Printf("[Agent] "+format, args...)
	}
}
