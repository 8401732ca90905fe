package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable names the core recognises.
const (
	EnvMaxOutputTokens = "PROBE_MAX_OUTPUT_TOKENS"
	EnvNonInteractive  = "PROBE_NON_INTERACTIVE"
	EnvDebug           = "DEBUG"
	EnvMaxIterations   = "MAX_TOOL_ITERATIONS"
	EnvWorkspaceDir    = "WORKSPACE_DIR"
)

// ConfigFileName is the optional YAML config looked up in the workspace.
const ConfigFileName = "probe-agent.yaml"

// Settings is the resolved runtime configuration: YAML file values overlaid
// with environment variables (env wins), then defaults.
type Settings struct {
	Persona         string   `yaml:"persona"`
	PersonaDir      string   `yaml:"personaDir"` // override dir for persona files
	MaxIterations   int      `yaml:"maxIterations"`
	MaxOutputTokens int      `yaml:"maxOutputTokens"`
	NonInteractive  bool     `yaml:"-"`
	Debug           bool     `yaml:"-"`
	Bash            BashPerm `yaml:"bash"`
}

// BashPerm carries the operator's custom shell permission patterns. Patterns
// use the structural grammar (`head`, `head:sub`, `head:*`).
type BashPerm struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// Load resolves Settings for the given workspace. Absence of the YAML file
// is not an error; a malformed file is.
func Load(workspaceDir string) (Settings, error) {
	s := Settings{}

	path := filepath.Join(workspaceDir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		log.Printf("[Config] Loaded %s", path)
	case !os.IsNotExist(err):
		return Settings{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	s.applyEnv()
	return s, nil
}

// applyEnv overlays environment variables onto the file values.
func (s *Settings) applyEnv() {
	if n, ok := envInt(EnvMaxIterations); ok {
		s.MaxIterations = n
	}
	if n, ok := envInt(EnvMaxOutputTokens); ok {
		s.MaxOutputTokens = n
	}
	s.NonInteractive = envBool(EnvNonInteractive)
	s.Debug = envBool(EnvDebug)
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[Config] WARNING: invalid %s=%q, ignoring", name, v)
		return 0, false
	}
	return n, true
}

func envBool(name string) bool {
	switch os.Getenv(name) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
