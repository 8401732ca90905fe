package session

import (
	"strings"
	"testing"

	"github.com/probelabs/probe-agent/internal/llm"
)

// threeSegmentHistory builds: system + 3 human questions, the first two with
// tool traffic, the last answered directly.
func threeSegmentHistory() *History {
	h := NewHistory("You are a code-search assistant.")

	h.AddUser("how does auth work?")
	h.AddAssistant("<thinking>look</thinking><search><query>auth</query></search>")
	h.AddToolResult("search", "auth.go: func Login() ...")
	h.AddAssistant("<extract><file_path>auth.go</file_path></extract>")
	h.AddToolResult("extract", "func Login() { ... }")
	h.AddAssistant("Auth works via Login().")

	h.AddUser("and sessions?")
	h.AddAssistant("<search><query>session store</query></search>")
	h.AddToolResult("search", "store.go: type Store ...")
	h.AddAssistant("Sessions live in an in-memory store.")

	h.AddUser("thanks, summarize")
	h.AddAssistant("Summary: login plus an in-memory session store.")
	return h
}

func TestHistory_SegmentAssignment(t *testing.T) {
	h := threeSegmentHistory()
	msgs := h.Messages()

	if msgs[0].Role != llm.RoleSystem || msgs[0].Segment != 0 {
		t.Fatalf("system message must sit in segment 0: %+v", msgs[0])
	}
	if h.CurrentSegment() != 3 {
		t.Fatalf("current segment = %d, want 3", h.CurrentSegment())
	}
	// Tool results stay in the segment of the question that triggered them.
	for _, m := range msgs {
		if m.Synthetic && m.Tool == "extract" && m.Segment != 1 {
			t.Fatalf("extract result in segment %d, want 1", m.Segment)
		}
	}
	humans := 0
	for _, m := range msgs {
		if IsHuman(m) {
			humans++
		}
	}
	if humans != 3 {
		t.Fatalf("human turns = %d, want 3", humans)
	}
}

func TestCompact_KeepsSkeletonAndLastSegment(t *testing.T) {
	h := threeSegmentHistory()
	before := h.Messages()

	msgs, stats := Compact(before, 1)

	// System message survives verbatim.
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != before[0].Content {
		t.Fatal("system message must survive compaction verbatim")
	}
	// Every human question survives verbatim.
	questions := []string{"how does auth work?", "and sessions?", "thanks, summarize"}
	for _, q := range questions {
		found := false
		for _, m := range msgs {
			if IsHuman(m) && m.Content == q {
				found = true
			}
		}
		if !found {
			t.Fatalf("human turn %q lost in compaction", q)
		}
	}
	// The last segment is untouched.
	last := msgs[len(msgs)-1]
	if last.Content != "Summary: login plus an in-memory session store." {
		t.Fatalf("final assistant turn changed: %q", last.Content)
	}

	// Old segments collapse to summaries naming their tools.
	joined := joinText(msgs)
	if !strings.Contains(joined, "<segment_summary>used tools: search, extract; produced 2 tool results</segment_summary>") {
		t.Fatalf("segment 1 summary missing or wrong:\n%s", joined)
	}
	if !strings.Contains(joined, "<segment_summary>used tools: search; produced 1 tool results</segment_summary>") {
		t.Fatalf("segment 2 summary missing or wrong:\n%s", joined)
	}
	// The folded tool payloads are gone.
	if strings.Contains(joined, "func Login() { ... }") {
		t.Fatal("folded tool result still present")
	}

	if stats.OriginalCount != len(before) {
		t.Fatalf("original count = %d, want %d", stats.OriginalCount, len(before))
	}
	if stats.CompactedCount != len(msgs) {
		t.Fatalf("compacted count = %d, want %d", stats.CompactedCount, len(msgs))
	}
	if stats.Removed <= 0 || stats.TokensSaved <= 0 {
		t.Fatalf("expected positive savings, got %+v", stats)
	}
}

func TestCompact_NothingOldEnough(t *testing.T) {
	h := NewHistory("sys")
	h.AddUser("only question")
	h.AddAssistant("only answer")

	msgs, stats := Compact(h.Messages(), 1)
	if stats.Removed != 0 || len(msgs) != 3 {
		t.Fatalf("single-segment history must be left alone: %+v", stats)
	}
}

func TestCompact_Idempotent(t *testing.T) {
	h := threeSegmentHistory()
	once, _ := Compact(h.Messages(), 1)
	twice, stats := Compact(once, 1)

	if len(twice) != len(once) {
		t.Fatalf("second pass changed length: %d -> %d", len(once), len(twice))
	}
	if joinText(twice) != joinText(once) {
		t.Fatal("second pass changed content")
	}
	if stats.Removed != 0 {
		t.Fatalf("second pass removed %d messages", stats.Removed)
	}
}

func TestCompact_KeepLastTwoSegments(t *testing.T) {
	h := threeSegmentHistory()
	msgs, _ := Compact(h.Messages(), 2)

	joined := joinText(msgs)
	// Segment 2 must now survive in full.
	if !strings.Contains(joined, "Sessions live in an in-memory store.") {
		t.Fatal("segment 2 should be kept verbatim with keepLast=2")
	}
	// Segment 1 still folds.
	if !strings.Contains(joined, "<segment_summary>") {
		t.Fatal("segment 1 should still fold")
	}
	if strings.Contains(joined, "Auth works via Login().") {
		t.Fatal("segment 1 assistant turn should be folded")
	}
}

func TestCompact_SegmentWithoutTools(t *testing.T) {
	h := NewHistory("sys")
	h.AddUser("q1")
	h.AddAssistant("direct answer")
	h.AddUser("q2")
	h.AddAssistant("a2")

	msgs, _ := Compact(h.Messages(), 1)
	if !strings.Contains(joinText(msgs), "<segment_summary>assistant replied without tool calls</segment_summary>") {
		t.Fatalf("tool-less segment summary missing:\n%s", joinText(msgs))
	}
}

func joinText(msgs []llm.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Text())
		sb.WriteString("\n")
	}
	return sb.String()
}
