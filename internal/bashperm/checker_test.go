package bashperm

import (
	"strings"
	"testing"
)

func TestCheck_DefaultAllow(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	allowed := []string{
		"ls -la",
		"cat main.go",
		"grep -rn TODO .",
		"git status",
		"git log --oneline -5",
		"git stash list",
		"git branch",
		"gh pr list",
		"gh api repos/owner/repo/pulls",
		"gh search repos probe",
	}
	for _, cmd := range allowed {
		if d := c.Check(cmd); !d.Allowed {
			t.Errorf("expected %q allowed, denied: %s", cmd, d.Reason)
		}
	}
}

func TestCheck_DefaultDeny(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	denied := []string{
		"rm -rf /",
		"sudo ls",
		"dd if=/dev/zero of=/dev/sda",
		"git push origin main",
		"git commit -m x",
		"git stash drop",
		"git branch -D feature",
		"git branch feature -D",
		"git checkout -f main",
		"gh pr create --title x",
		"gh api -X DELETE repos/o/r",
		"gh api --method=POST repos/o/r/issues",
		"gh api -f title=x repos/o/r/issues",
		"awk '{print $1}' file",
		"python -c \"print(1)\"",
		"find . -name '*.go' -exec rm {} +",
	}
	for _, cmd := range denied {
		if d := c.Check(cmd); d.Allowed {
			t.Errorf("expected %q denied, allowed via %q", cmd, d.MatchedPattern)
		}
	}
}

func TestCheck_QuotingDoesNotChangeOutcome(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	pairs := [][2]string{
		{"git log", `git "log"`},
		{"git log", `git 'log'`},
		{"rm -rf /tmp/x", `"rm" -rf /tmp/x`},
		{"git branch -D x", `git branch "-D" x`},
	}
	for _, pair := range pairs {
		a, b := c.Check(pair[0]), c.Check(pair[1])
		if a.Allowed != b.Allowed {
			t.Errorf("quoting changed outcome for %q vs %q: %v vs %v",
				pair[0], pair[1], a.Allowed, b.Allowed)
		}
	}
}

func TestCheck_CustomDenyWinsOverEverything(t *testing.T) {
	c := NewChecker([]string{"git:log"}, []string{"git:log"}, nil)
	if d := c.Check("git log"); d.Allowed {
		t.Fatal("custom deny must win over custom allow")
	}
}

func TestCheck_CustomAllowOverridesDefaultDeny(t *testing.T) {
	c := NewChecker([]string{"git:commit"}, nil, nil)
	d := c.Check("git commit -m wip")
	if !d.Allowed {
		t.Fatalf("expected custom allow to override default deny: %s", d.Reason)
	}
	if !d.OverriddenDeny {
		t.Fatal("expected OverriddenDeny marker")
	}
}

func TestCheck_CustomAllowDoesNotShadowOtherDenies(t *testing.T) {
	// Allowing git:commit must not unlock git:push.
	c := NewChecker([]string{"git:commit"}, nil, nil)
	if d := c.Check("git push"); d.Allowed {
		t.Fatal("git push must stay denied")
	}
}

func TestCheck_UnlistedDenied(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	d := c.Check("curl https://example.com")
	if d.Allowed {
		t.Fatal("unlisted command must be denied")
	}
	if !strings.Contains(d.Reason, "not in the allow list") {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}

// ── Complex commands ──

func TestCheck_PipelineAllAllowed(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	d := c.Check("git log | head -20")
	if !d.Allowed {
		t.Fatalf("expected pipeline allowed: %s", d.Reason)
	}
	if !d.IsComplex || !d.AllowedByComponents {
		t.Fatalf("expected complex component-wise allow, got %+v", d)
	}
}

func TestCheck_PipelineOneDeniedComponent(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	d := c.Check("cat /etc/passwd | sudo tee /etc/shadow")
	if d.Allowed {
		t.Fatal("pipeline with denied component must be denied")
	}
	if !strings.Contains(d.Reason, "sudo") {
		t.Fatalf("reason should name the denied component: %s", d.Reason)
	}
}

func TestCheck_ChainsSplitAcrossOperators(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	if d := c.Check("git status && git diff; git log"); !d.Allowed {
		t.Fatalf("expected chain allowed: %s", d.Reason)
	}
}

func TestCheck_RedirectionDenied(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	cases := []string{
		"echo hi > /tmp/out",
		"cat file < input",
		"echo $(rm -rf /)",
		"echo `whoami`",
	}
	for _, cmd := range cases {
		d := c.Check(cmd)
		if d.Allowed {
			t.Errorf("expected %q denied", cmd)
		}
		if !strings.Contains(d.Reason, "redirection or substitution") {
			t.Errorf("unexpected reason for %q: %s", cmd, d.Reason)
		}
	}
}

// ── Audit sink ──

func TestCheck_AuditSinkReceivesDecision(t *testing.T) {
	var got []Decision
	c := NewChecker(nil, nil, func(d Decision) { got = append(got, d) })

	c.Check("git log")
	c.Check("rm -rf /")

	if len(got) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(got))
	}
	if !got[0].Allowed || got[0].ParsedHead != "git" {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Allowed || got[1].MatchedPattern != "rm" {
		t.Fatalf("unexpected second record: %+v", got[1])
	}
}

// ── Parsing ──

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw     string
		head    string
		args    []string
		complex bool
	}{
		{"ls", "ls", nil, false},
		{"git log --oneline", "git", []string{"log", "--oneline"}, false},
		{`git "log"`, "git", []string{"log"}, false},
		{`echo 'a b'`, "echo", []string{"a b"}, false},
		{"a | b", "a", nil, true},
		{"a && b", "a", nil, true},
		{"echo $(date)", "echo", nil, true},
		{"echo '| not an operator'", "echo", []string{"| not an operator"}, false},
	}
	for _, tt := range tests {
		cmd := ParseCommand(tt.raw)
		if cmd.Head != tt.head {
			t.Errorf("%q: head = %q, want %q", tt.raw, cmd.Head, tt.head)
		}
		if cmd.IsComplex != tt.complex {
			t.Errorf("%q: isComplex = %v, want %v", tt.raw, cmd.IsComplex, tt.complex)
		}
		if !tt.complex && len(tt.args) > 0 {
			if len(cmd.Args) != len(tt.args) {
				t.Errorf("%q: args = %v, want %v", tt.raw, cmd.Args, tt.args)
				continue
			}
			for i := range tt.args {
				if cmd.Args[i] != tt.args[i] {
					t.Errorf("%q: args[%d] = %q, want %q", tt.raw, i, cmd.Args[i], tt.args[i])
				}
			}
		}
	}
}

func TestSplitComplex(t *testing.T) {
	parts, ok := SplitComplex("git log | head -5 && git status")
	if !ok {
		t.Fatal("expected splittable")
	}
	want := []string{"git log", "head -5", "git status"}
	if len(parts) != len(want) {
		t.Fatalf("parts = %v, want %v", parts, want)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("parts[%d] = %q, want %q", i, parts[i], want[i])
		}
	}

	if _, ok := SplitComplex("echo hi > out"); ok {
		t.Fatal("redirection must not be splittable")
	}
}
