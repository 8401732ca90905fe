// Package session holds the running conversation of an agent session: a
// segmented message history, the compactor that shrinks it, and a TTL store
// for keeping many sessions alive in one process.
package session

import (
	"strings"

	"github.com/probelabs/probe-agent/internal/llm"
)

// History is the ordered message list of one session. Every human user turn
// opens a new segment; the assistant replies and synthetic tool-result turns
// that follow belong to that segment until the next human turn. The segment
// structure is what the compactor operates on.
type History struct {
	msgs    []llm.Message
	segment int
}

// NewHistory creates a history, optionally seeded with a system message
// (segment 0, never compacted away).
func NewHistory(system string) *History {
	h := &History{}
	if system != "" {
		h.msgs = append(h.msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	return h
}

// AddUser appends a human user turn and opens a new segment.
func (h *History) AddUser(text string) {
	h.segment++
	h.msgs = append(h.msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: text,
		Segment: h.segment,
	})
}

// AddUserParts appends a human user turn with structured content (images).
func (h *History) AddUserParts(parts []llm.ContentPart) {
	h.segment++
	h.msgs = append(h.msgs, llm.Message{
		Role:    llm.RoleUser,
		Parts:   parts,
		Segment: h.segment,
	})
}

// AddAssistant appends an assistant turn to the current segment.
func (h *History) AddAssistant(text string) {
	h.msgs = append(h.msgs, llm.Message{
		Role:    llm.RoleAssistant,
		Content: text,
		Segment: h.segment,
	})
}

// AddToolResult appends a synthetic user turn carrying a tool result in the
// <tool_result> envelope. It stays in the current segment: the model sees it
// as user input, the compactor does not mistake it for a human question.
func (h *History) AddToolResult(tool, text string) {
	h.msgs = append(h.msgs, llm.Message{
		Role:      llm.RoleUser,
		Content:   wrapToolResult(tool, text),
		Segment:   h.segment,
		Synthetic: true,
		Tool:      tool,
	})
}

// AddToolResultParts appends a synthetic tool-result turn with structured
// content (tools that produce images). The first text part carries the
// envelope; image parts follow unwrapped.
func (h *History) AddToolResultParts(tool string, parts []llm.ContentPart) {
	wrapped := make([]llm.ContentPart, len(parts))
	copy(wrapped, parts)
	for i, p := range wrapped {
		if p.Type == llm.PartText {
			wrapped[i].Text = wrapToolResult(tool, p.Text)
			break
		}
	}
	h.msgs = append(h.msgs, llm.Message{
		Role:      llm.RoleUser,
		Parts:     wrapped,
		Segment:   h.segment,
		Synthetic: true,
		Tool:      tool,
	})
}

// AddSyntheticUser appends a synthetic user turn without the tool-result
// envelope: corrective hints the loop injects (parse faults, repetition
// nudges). Stays in the current segment.
func (h *History) AddSyntheticUser(text string) {
	h.msgs = append(h.msgs, llm.Message{
		Role:      llm.RoleUser,
		Content:   text,
		Segment:   h.segment,
		Synthetic: true,
	})
}

func wrapToolResult(tool, text string) string {
	return "<tool_result tool=\"" + tool + "\">\n" + text + "\n</tool_result>"
}

// Messages returns a copy of the message list, safe to hand to an LLM client.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int { return len(h.msgs) }

// CurrentSegment returns the active segment number (0 before any human turn).
func (h *History) CurrentSegment() int { return h.segment }

// Replace swaps the message list wholesale (after compaction). The segment
// counter is preserved so new human turns keep increasing it.
func (h *History) Replace(msgs []llm.Message) {
	h.msgs = msgs
}

// IsHuman reports whether a message is a real human user turn (not a
// synthetic tool result, not system, not assistant).
func IsHuman(m llm.Message) bool {
	return m.Role == llm.RoleUser && !m.Synthetic
}

// renderToolList joins tool names for a segment summary: "search, extract".
func renderToolList(tools []string) string {
	return strings.Join(tools, ", ")
}
