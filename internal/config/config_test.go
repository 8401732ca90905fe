package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Persona != "" || s.MaxIterations != 0 || len(s.Bash.Allow) != 0 {
		t.Fatalf("expected zero settings, got %+v", s)
	}
}

func TestLoad_YAMLValues(t *testing.T) {
	dir := t.TempDir()
	content := `
persona: engineer
maxIterations: 50
maxOutputTokens: 8000
bash:
  allow:
    - "make:test"
    - "cargo:check"
  deny:
    - "curl"
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Persona != "engineer" || s.MaxIterations != 50 || s.MaxOutputTokens != 8000 {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if len(s.Bash.Allow) != 2 || s.Bash.Allow[0] != "make:test" || len(s.Bash.Deny) != 1 {
		t.Fatalf("bash patterns not loaded: %+v", s.Bash)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("maxIterations: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvMaxIterations, "12")
	t.Setenv(EnvDebug, "1")

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.MaxIterations != 12 {
		t.Fatalf("env should win over file: %+v", s)
	}
	if !s.Debug {
		t.Fatal("DEBUG=1 not picked up")
	}
}

func TestLoad_InvalidEnvIgnored(t *testing.T) {
	t.Setenv(EnvMaxIterations, "not-a-number")
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.MaxIterations != 0 {
		t.Fatalf("invalid env value must be ignored: %+v", s)
	}
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("persona: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("malformed YAML must fail")
	}
}
