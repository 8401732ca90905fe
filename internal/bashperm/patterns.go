package bashperm

import "strings"

// Pattern grammar: `command` | `command:subcommand` | `command:*`, with
// deeper segments for subcommand trees (`git:stash:list`) and flag segments
// (`git:branch:-d`). Matching is structural against the parsed command:
//
//   - the first segment must equal the head;
//   - `*` matches anything (including a missing argument);
//   - a segment starting with `-` matches if ANY argument equals it, so
//     `git:branch:-d` catches both `git branch -d x` and `git branch x -d`;
//   - other segments match positionally against args[0], args[1], ...
func patternMatches(pattern string, cmd Command) bool {
	segments := strings.Split(pattern, ":")
	if len(segments) == 0 || segments[0] != cmd.Head {
		return false
	}

	argPos := 0
	for _, seg := range segments[1:] {
		switch {
		case seg == "*":
			return true
		case strings.HasPrefix(seg, "-"):
			if !argContains(cmd.Args, seg) {
				return false
			}
		default:
			if argPos >= len(cmd.Args) || cmd.Args[argPos] != seg {
				return false
			}
			argPos++
		}
	}
	return true
}

func argContains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// matchFirst returns the first pattern in list that matches cmd.
func matchFirst(patterns []string, cmd Command) (string, bool) {
	for _, p := range patterns {
		if patternMatches(p, cmd) {
			return p, true
		}
	}
	return "", false
}

// ghListViewResources are the gh resources whose list/view subcommands are
// read-only.
var ghListViewResources = []string{
	"pr", "issue", "repo", "release", "run", "workflow", "gist",
	"label", "cache", "codespace", "project", "ruleset", "secret", "variable",
}

// DefaultAllow is the built-in allow list: read-only repository operations.
var DefaultAllow = buildDefaultAllow()

func buildDefaultAllow() []string {
	patterns := []string{
		"ls", "cat", "grep", "find", "head", "tail", "pwd", "echo", "wc",
		"git:status", "git:log", "git:diff", "git:show", "git:branch",
		"git:tag", "git:remote", "git:blame", "git:rev-parse", "git:rev-list",
		"git:ls-files", "git:ls-tree", "git:cat-file", "git:for-each-ref",
		"git:merge-base", "git:describe", "git:config",
		"git:stash:list", "git:worktree:list", "git:notes:list", "git:notes:show",
		"gh:auth:status", "gh:search:*", "gh:api",
	}
	for _, res := range ghListViewResources {
		patterns = append(patterns, "gh:"+res+":list", "gh:"+res+":view")
	}
	return patterns
}

// DefaultDeny is the built-in deny list: anything that mutates the repo,
// the host, or remote state. Deny patterns are evaluated before allow
// patterns, so `git:branch:-d` wins over the read-only `git:branch`.
var DefaultDeny = []string{
	// mutating git
	"git:push", "git:commit", "git:reset", "git:clean", "git:rm",
	"git:merge", "git:rebase", "git:cherry-pick",
	"git:stash:drop", "git:stash:pop", "git:stash:clear", "git:stash:push",
	"git:branch:-d", "git:branch:-D", "git:branch:--delete",
	"git:tag:-d", "git:tag:--delete",
	"git:remote:remove", "git:remote:rm",
	"git:checkout:--force", "git:checkout:-f",
	"git:submodule:deinit",
	"git:worktree:remove", "git:worktree:add",
	"git:notes:add", "git:notes:remove",
	// mutating gh
	"gh:pr:create", "gh:pr:close", "gh:pr:merge", "gh:pr:reopen",
	"gh:pr:review", "gh:pr:comment", "gh:pr:edit",
	"gh:issue:create", "gh:issue:close", "gh:issue:delete",
	"gh:issue:reopen", "gh:issue:comment", "gh:issue:edit",
	"gh:repo:create", "gh:repo:delete", "gh:repo:edit", "gh:repo:fork",
	"gh:repo:rename", "gh:repo:archive", "gh:repo:clone",
	"gh:release:create", "gh:release:delete", "gh:release:edit",
	"gh:secret:set", "gh:variable:set", "gh:ssh-key:add", "gh:label:create",
	"gh:label:delete", "gh:label:edit",
	// destructive or arbitrary-execution commands
	"rm", "sudo", "dd",
	"awk", "perl:-e", "python:-c", "python3:-c", "node:-e",
	"find:-exec",
}
