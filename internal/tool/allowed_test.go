package tool

import "testing"

func TestAllowedSet_Modes(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		patterns []string
		tool     string
		want     bool
	}{
		{"none blocks everything", ModeNone, []string{"search"}, "search", false},
		{"all enables by default", ModeAll, nil, "search", true},
		{"all honours exclude", ModeAll, []string{"!bash"}, "bash", false},
		{"all exclude leaves rest", ModeAll, []string{"!bash"}, "search", true},
		{"whitelist exact", ModeWhitelist, []string{"search"}, "search", true},
		{"whitelist miss", ModeWhitelist, []string{"search"}, "extract", false},
		{"whitelist glob", ModeWhitelist, []string{"mcp__fs__*"}, "mcp__fs__read_file", true},
		{"whitelist glob other server", ModeWhitelist, []string{"mcp__fs__*"}, "mcp__db__query", false},
		{"exclude wins over include", ModeWhitelist, []string{"mcp__fs__*", "!mcp__fs__delete_file"}, "mcp__fs__delete_file", false},
		{"star crosses underscores", ModeAll, []string{"!mcp__*"}, "mcp__fs__read_file", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAllowedSet(tt.mode, tt.patterns)
			if got := s.IsEnabled(tt.tool); got != tt.want {
				t.Fatalf("IsEnabled(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestAllowedSet_NilEnablesAll(t *testing.T) {
	var s *AllowedSet
	if !s.IsEnabled("anything") {
		t.Fatal("nil set must enable everything")
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"search", "search", true},
		{"search", "searches", false},
		{"*", "anything", true},
		{"mcp__*__list", "mcp__fs__list", true},
		{"mcp__*__list", "mcp__fs__read", false},
		{"*_file", "read_file", true},
		{"a*b*c", "a-x-b-y-c", true},
		{"a*b*c", "a-x-c", false},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.name); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
