package agent

import (
	"crypto/md5"
	"fmt"
	"regexp"
)

// ── Semantic stuck detector ──

// stuckPatterns classify an assistant turn as an inability-to-proceed
// message. Matching is case-insensitive over the whole text.
var stuckPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cannot proceed`),
	regexp.MustCompile(`(?i)can't proceed`),
	regexp.MustCompile(`(?i)unable to proceed`),
	regexp.MustCompile(`(?i)\bloop\b`),
	regexp.MustCompile(`(?i)\bdeadlock\b`),
	regexp.MustCompile(`(?i)exhausted\b.{0,40}\b(options|methods)`),
	regexp.MustCompile(`(?i)\bneed\b.{0,60}\bto proceed`),
	regexp.MustCompile(`(?i)explained\b.{0,40}\bmultiple times`),
	regexp.MustCompile(`(?i)cannot find\b.{0,60}\brequired`),
}

// IsStuck reports whether the assistant text matches any stuck pattern.
// Two consecutive stuck turns terminate the loop even when their literal
// texts differ: models alternate between near-identical phrasings and would
// otherwise burn tokens forever.
func IsStuck(text string) bool {
	for _, re := range stuckPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ── Frequency rule ──

const (
	freqWindowSize = 8 // recent tool calls considered
	freqCallLimit  = 3 // identical calls within the window that trigger
)

// callRecord identifies one tool invocation by name and argument hash.
type callRecord struct {
	name string
	hash string
}

// freqDetector tracks recent tool calls and flags a tool being re-invoked
// with identical arguments. It injects a corrective nudge well before the
// semantic detector would ever terminate; the two are independent.
type freqDetector struct {
	recent []callRecord
	warned map[callRecord]bool
}

func newFreqDetector() *freqDetector {
	return &freqDetector{warned: make(map[callRecord]bool)}
}

// Observe records a call and returns a non-empty warning the first time the
// same (tool, args) pair reaches the limit within the window.
func (d *freqDetector) Observe(name string, args []byte) string {
	// #nosec G401 -- md5 used for call deduplication, not security
	rec := callRecord{name: name, hash: fmt.Sprintf("%x", md5.Sum(args))}
	d.recent = append(d.recent, rec)
	if len(d.recent) > freqWindowSize {
		d.recent = d.recent[len(d.recent)-freqWindowSize:]
	}

	count := 0
	for _, r := range d.recent {
		if r == rec {
			count++
		}
	}
	if count < freqCallLimit || d.warned[rec] {
		return ""
	}
	d.warned[rec] = true
	return fmt.Sprintf(
		"You have called %s with identical arguments %d times. The result will not change. Try a different tool, different arguments, or finish with attempt_completion.",
		name, count)
}
