package session

import (
	"fmt"
	"strings"

	"github.com/probelabs/probe-agent/internal/governor"
	"github.com/probelabs/probe-agent/internal/llm"
)

// DefaultKeepSegments is how many trailing segments survive compaction
// verbatim unless the caller asks for more.
const DefaultKeepSegments = 1

// CompactStats reports what a compaction pass achieved.
type CompactStats struct {
	OriginalCount    int     `json:"original_count"`
	CompactedCount   int     `json:"compacted_count"`
	Removed          int     `json:"removed"`
	ReductionPercent float64 `json:"reduction_percent"`
	TokensSaved      int     `json:"tokens_saved"`
}

// Compact shrinks a message list while preserving its skeleton:
//
//   - the system message (segment 0) is kept verbatim;
//   - every human user turn is kept verbatim, so the model never loses what
//     it was actually asked;
//   - the last keepLast segments are kept verbatim in full;
//   - in older segments, the assistant turns and synthetic tool results are
//     replaced by a single <segment_summary> turn naming the tools used and
//     the number of tool results produced.
//
// keepLast <= 0 falls back to DefaultKeepSegments. Compacting an
// already-compacted history is a no-op for the surviving messages.
func Compact(msgs []llm.Message, keepLast int) ([]llm.Message, CompactStats) {
	if keepLast <= 0 {
		keepLast = DefaultKeepSegments
	}

	stats := CompactStats{OriginalCount: len(msgs)}

	maxSeg := 0
	for _, m := range msgs {
		if m.Segment > maxSeg {
			maxSeg = m.Segment
		}
	}
	cutoff := maxSeg - keepLast + 1
	if cutoff <= 1 {
		// Nothing old enough to fold.
		stats.CompactedCount = len(msgs)
		return msgs, stats
	}

	var (
		out          []llm.Message
		beforeTokens int
	)
	for _, m := range msgs {
		beforeTokens += governor.EstimateTokens(m.Text())
	}

	// Per-segment fold state for segments below the cutoff.
	type fold struct {
		tools   []string
		seen    map[string]bool
		results int
		elided  int
	}
	var cur *fold
	curSeg := -1

	flush := func() {
		if cur == nil || cur.elided == 0 {
			cur = nil
			return
		}
		var body string
		if cur.results > 0 {
			body = fmt.Sprintf("used tools: %s; produced %d tool results",
				renderToolList(cur.tools), cur.results)
		} else {
			body = "assistant replied without tool calls"
		}
		out = append(out, llm.Message{
			Role:      llm.RoleUser,
			Content:   fmt.Sprintf("<segment_summary>%s</segment_summary>", body),
			Segment:   curSeg,
			Synthetic: true,
		})
		cur = nil
	}

	for _, m := range msgs {
		// Summaries from an earlier pass are kept as-is; folding them again
		// would degrade them.
		priorSummary := m.Synthetic && strings.HasPrefix(m.Content, "<segment_summary>")
		keepVerbatim := m.Segment == 0 || m.Segment >= cutoff || IsHuman(m) || priorSummary
		if keepVerbatim {
			flush()
			out = append(out, m)
			if IsHuman(m) && m.Segment < cutoff {
				cur = &fold{seen: make(map[string]bool)}
				curSeg = m.Segment
			}
			continue
		}
		if cur == nil {
			// Defensive: an old non-human message without a preceding human
			// turn (already-summarized segment). Keep it as-is.
			out = append(out, m)
			continue
		}
		cur.elided++
		if m.Synthetic && m.Tool != "" {
			cur.results++
			if !cur.seen[m.Tool] {
				cur.seen[m.Tool] = true
				cur.tools = append(cur.tools, m.Tool)
			}
		}
	}
	flush()

	afterTokens := 0
	for _, m := range out {
		afterTokens += governor.EstimateTokens(m.Text())
	}

	stats.CompactedCount = len(out)
	stats.Removed = stats.OriginalCount - stats.CompactedCount
	if stats.OriginalCount > 0 {
		stats.ReductionPercent = float64(stats.Removed) / float64(stats.OriginalCount) * 100
	}
	stats.TokensSaved = beforeTokens - afterTokens
	return out, stats
}
