// Package builtin provides the native tools of the agent loop: code search,
// file listing, shell execution, image loading, the editor delegate, and the
// terminal attempt_completion marker.
package builtin

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Confine resolves path parameters and rejects anything outside the session's
// allowed folders. Every built-in that takes a path routes through it.
type Confine struct {
	workdir string
	allowed []string // absolute roots; always includes workdir
}

// NewConfine builds a confiner rooted at workdir with optional extra roots.
func NewConfine(workdir string, extra ...string) (*Confine, error) {
	absWork, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("resolving workdir %q: %w", workdir, err)
	}
	c := &Confine{workdir: absWork, allowed: []string{absWork}}
	for _, root := range extra {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving allowed folder %q: %w", root, err)
		}
		c.allowed = append(c.allowed, abs)
	}
	return c, nil
}

// Workdir returns the primary root.
func (c *Confine) Workdir() string { return c.workdir }

// Resolve turns a possibly-relative path parameter into an absolute path and
// verifies it lies within an allowed folder. Relative paths resolve against
// the workdir.
func (c *Confine) Resolve(p string) (string, error) {
	if p == "" {
		return c.workdir, nil
	}
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.workdir, abs)
	}
	abs = filepath.Clean(abs)

	for _, root := range c.allowed {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("path %q is outside the allowed folders", p)
}

// parseIntArg converts a native-dialect string parameter to an int; empty
// strings yield the fallback. The XML dialect delivers every parameter as a
// string, so numeric tool params convert here.
func parseIntArg(s string, fallback int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", s)
	}
	return n, nil
}

// parseBoolArg converts a native-dialect string parameter to a bool.
func parseBoolArg(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
