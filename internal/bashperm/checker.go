package bashperm

import (
	"fmt"
	"strings"
)

// Decision is the audit record for one permission check.
type Decision struct {
	Command             string `json:"command"`
	ParsedHead          string `json:"parsed_head"`
	IsComplex           bool   `json:"is_complex"`
	Allowed             bool   `json:"allowed"`
	Reason              string `json:"reason"`
	MatchedPattern      string `json:"matched_pattern,omitempty"`
	OverriddenDeny      bool   `json:"overridden_deny,omitempty"`
	AllowedByComponents bool   `json:"allowed_by_components,omitempty"`
}

// AuditSink receives every decision the checker makes.
type AuditSink func(Decision)

// Checker evaluates shell commands against the effective policy:
// (DefaultAllow ∪ customAllow) minus (DefaultDeny ∪ customDeny), where
// customAllow overrides a default deny for exactly the patterns it lists,
// and customDeny always wins over everything.
type Checker struct {
	customAllow []string
	customDeny  []string
	audit       AuditSink
}

// NewChecker builds a checker with operator-supplied extra patterns.
// audit may be nil.
func NewChecker(customAllow, customDeny []string, audit AuditSink) *Checker {
	return &Checker{
		customAllow: customAllow,
		customDeny:  customDeny,
		audit:       audit,
	}
}

// Check decides whether the command string may execute. Complex commands
// (pipelines, && chains) are split into simple components and allowed only
// when every component is allowed; commands with redirection or substitution
// cannot be split and are denied outright.
func (c *Checker) Check(raw string) Decision {
	cmd := ParseCommand(raw)

	var d Decision
	if cmd.IsComplex {
		d = c.checkComplex(raw, cmd)
	} else {
		d = c.checkSimple(cmd)
	}

	if c.audit != nil {
		c.audit(d)
	}
	return d
}

// checkSimple implements the single-command algorithm. Order matters:
// customDeny, then defaultDeny (unless overridden), then customAllow, then
// DefaultAllow, then deny-by-default.
func (c *Checker) checkSimple(cmd Command) Decision {
	d := Decision{Command: cmd.Raw, ParsedHead: cmd.Head}

	if cmd.Head == "" {
		d.Reason = "empty command"
		return d
	}

	if p, ok := matchFirst(c.customDeny, cmd); ok {
		d.Reason = fmt.Sprintf("command %q matches deny pattern %q", cmd.Raw, p)
		d.MatchedPattern = p
		return d
	}

	if p, ok := matchFirst(DefaultDeny, cmd); ok {
		if !containsPattern(c.customAllow, p) {
			d.Reason = fmt.Sprintf("command %q matches deny pattern %q", cmd.Raw, p)
			d.MatchedPattern = p
			return d
		}
		// The operator explicitly allowed this exact pattern.
		d.OverriddenDeny = true
	}

	if p, ok := matchFirst(c.customAllow, cmd); ok {
		d.Allowed = true
		d.Reason = "custom allow"
		d.MatchedPattern = p
		return d
	}

	if p, ok := matchFirst(DefaultAllow, cmd); ok {
		if !c.passesSpecialGuards(cmd, &d) {
			return d
		}
		d.Allowed = true
		d.Reason = "default allow"
		d.MatchedPattern = p
		return d
	}

	d.Reason = fmt.Sprintf("command %q is not in the allow list", cmd.Raw)
	return d
}

// checkComplex splits and evaluates every component.
func (c *Checker) checkComplex(raw string, cmd Command) Decision {
	d := Decision{Command: raw, ParsedHead: cmd.Head, IsComplex: true}

	components, ok := SplitComplex(raw)
	if !ok {
		d.Reason = fmt.Sprintf("command %q uses redirection or substitution, which cannot be permission-checked component-wise", raw)
		return d
	}

	for _, comp := range components {
		sub := c.checkSimple(ParseCommand(comp))
		if !sub.Allowed {
			d.Reason = fmt.Sprintf("component %q denied: %s", comp, sub.Reason)
			d.MatchedPattern = sub.MatchedPattern
			return d
		}
	}

	d.Allowed = true
	d.AllowedByComponents = true
	d.Reason = fmt.Sprintf("all %d components allowed", len(components))
	return d
}

// passesSpecialGuards applies checks that the pattern grammar cannot
// express. Currently: `gh api` is read-only only for GET-shaped requests.
func (c *Checker) passesSpecialGuards(cmd Command, d *Decision) bool {
	if cmd.Head == "gh" && len(cmd.Args) > 0 && cmd.Args[0] == "api" {
		if method, mutating := ghAPIMethod(cmd.Args[1:]); mutating {
			d.Reason = fmt.Sprintf("gh api with method %s mutates remote state", method)
			d.MatchedPattern = "gh:api"
			return false
		}
	}
	return true
}

// ghAPIMethod inspects gh api flags for a non-GET method or field flags
// (which imply POST).
func ghAPIMethod(args []string) (method string, mutating bool) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-X" || a == "--method":
			if i+1 < len(args) {
				m := strings.ToUpper(args[i+1])
				if m != "GET" {
					return m, true
				}
				i++
			}
		case strings.HasPrefix(a, "--method="):
			m := strings.ToUpper(strings.TrimPrefix(a, "--method="))
			if m != "GET" {
				return m, true
			}
		case a == "-F" || a == "-f" || a == "--field" || a == "--raw-field":
			return "POST", true
		}
	}
	return "GET", false
}

func containsPattern(patterns []string, want string) bool {
	for _, p := range patterns {
		if p == want {
			return true
		}
	}
	return false
}
