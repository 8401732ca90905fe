// Package governor bounds the size of tool results that re-enter the
// conversation. Oversized payloads are spilled to a temp file in full and
// replaced by a head(+tail) slice with a pointer to the spill file.
package governor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxOutputTokens is the per-tool-result ceiling unless overridden.
const DefaultMaxOutputTokens = 20000

// tailTokens is the size of the trailing slice for large limits.
const tailTokens = 1000

// headOnlyLimit: below this limit a tail slice is not worth its marker.
const headOnlyLimit = 2000

// charsPerToken is the standard approximation when no tokenizer is available.
const charsPerToken = 4

// EstimateTokens approximates the token count of a string: ceil(len/4).
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// Result describes the outcome of governing one payload.
type Result struct {
	Text           string // what goes back into the conversation
	Truncated      bool
	OriginalTokens int
	Limit          int
	SpillPath      string // empty if no spill happened (or spill failed)
}

// Governor applies the session's output budget to tool payloads.
type Governor struct {
	sessionID string
	maxTokens int
	spillDir  string
}

// New creates a governor for one session. maxTokens <= 0 (or any other
// invalid value the caller computed) falls back to DefaultMaxOutputTokens.
func New(sessionID string, maxTokens int) *Governor {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &Governor{
		sessionID: sessionID,
		maxTokens: maxTokens,
		spillDir:  filepath.Join(os.TempDir(), "probe-output"),
	}
}

// SetSpillDir overrides the spill directory (tests).
func (g *Governor) SetSpillDir(dir string) { g.spillDir = dir }

// MaxTokens returns the active limit.
func (g *Governor) MaxTokens() int { return g.maxTokens }

// Govern returns the payload unchanged when it fits, or truncates it.
// limitOverride > 0 replaces the session limit for this single payload
// (per-tool overrides); invalid overrides fall back to the session limit.
func (g *Governor) Govern(payload string, limitOverride int) Result {
	limit := g.maxTokens
	if limitOverride > 0 {
		limit = limitOverride
	}

	tokens := EstimateTokens(payload)
	if tokens <= limit {
		return Result{Text: payload, OriginalTokens: tokens, Limit: limit}
	}

	res := Result{Truncated: true, OriginalTokens: tokens, Limit: limit}
	res.SpillPath = g.spill(payload)
	res.Text = g.buildMessage(payload, tokens, limit, res.SpillPath)
	return res
}

// spill persists the full payload; failures are logged, never fatal.
func (g *Governor) spill(payload string) string {
	if err := os.MkdirAll(g.spillDir, 0o755); err != nil {
		log.Printf("[Governor] spill dir: %v", err)
		return ""
	}
	name := fmt.Sprintf("tool-output-%s-%s.txt", g.sessionID, uuid.NewString())
	path := filepath.Join(g.spillDir, name)
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		log.Printf("[Governor] spill write: %v", err)
		return ""
	}
	return path
}

// buildMessage renders the truncation notice plus the content slice.
// Small limits (< headOnlyLimit tokens) get a head slice only; larger limits
// get head + omitted-middle marker + tail, with headTokens = limit - tailTokens.
func (g *Governor) buildMessage(payload string, tokens, limit int, spillPath string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool output was %d tokens, exceeding the limit of %d tokens.\n", tokens, limit)
	if spillPath != "" {
		fmt.Fprintf(&sb, "The full output was saved to: %s\n", spillPath)
	} else {
		sb.WriteString("Warning: the full output could not be saved to a file.\n")
	}

	if limit < headOnlyLimit {
		headChars := limit * charsPerToken
		if headChars > len(payload) {
			headChars = len(payload)
		}
		fmt.Fprintf(&sb, "Showing the first %d tokens:\n\n", limit)
		sb.WriteString(payload[:headChars])
		return sb.String()
	}

	headTokens := limit - tailTokens
	headChars := headTokens * charsPerToken
	tailChars := tailTokens * charsPerToken
	if headChars+tailChars > len(payload) {
		headChars = len(payload) - tailChars
	}
	omitted := tokens - headTokens - tailTokens

	fmt.Fprintf(&sb, "Showing the first %d and last %d tokens:\n\n", headTokens, tailTokens)
	sb.WriteString(payload[:headChars])
	fmt.Fprintf(&sb, "\n\n[... %d tokens omitted ...]\n\n", omitted)
	sb.WriteString(payload[len(payload)-tailChars:])
	return sb.String()
}
