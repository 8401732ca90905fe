package tool

import "strings"

// Mode selects how an AllowedSet filters tool names.
type Mode string

const (
	ModeAll       Mode = "all"       // everything enabled except excludes
	ModeWhitelist Mode = "whitelist" // only include-pattern matches
	ModeNone      Mode = "none"      // nothing enabled
)

// AllowedSet decides which tools a session may use. Include patterns are
// globs over tool names (`*` matches any run of characters, so
// `mcp__fs__*` enables every tool of the fs server). Exclude patterns are
// written with a leading `!` and always win over includes.
type AllowedSet struct {
	mode     Mode
	includes []string
	excludes []string
}

// NewAllowedSet builds a set from raw patterns. Patterns beginning with `!`
// become excludes. Mode semantics:
//   - ModeNone: IsEnabled is always false.
//   - ModeAll: enabled unless an exclude matches; includes are ignored.
//   - ModeWhitelist: enabled iff an include matches and no exclude matches.
func NewAllowedSet(mode Mode, patterns []string) *AllowedSet {
	s := &AllowedSet{mode: mode}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			s.excludes = append(s.excludes, p[1:])
		} else {
			s.includes = append(s.includes, p)
		}
	}
	return s
}

// AllowAll returns a set that enables every tool.
func AllowAll() *AllowedSet {
	return &AllowedSet{mode: ModeAll}
}

// IsEnabled reports whether the named tool may be used.
func (s *AllowedSet) IsEnabled(name string) bool {
	if s == nil {
		return true
	}
	switch s.mode {
	case ModeNone:
		return false
	case ModeAll:
		return !matchAny(s.excludes, name)
	case ModeWhitelist:
		return matchAny(s.includes, name) && !matchAny(s.excludes, name)
	default:
		return false
	}
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if globMatch(p, name) {
			return true
		}
	}
	return false
}

// globMatch matches pattern against name where `*` matches any (possibly
// empty) run of characters. path.Match is not used because tool names may
// contain characters it treats specially and `*` must cross `_` freely.
func globMatch(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}

	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(name, parts[i])
		if idx < 0 {
			return false
		}
		name = name[idx+len(parts[i]):]
	}

	last := parts[len(parts)-1]
	return last == "" || strings.HasSuffix(name, last)
}
