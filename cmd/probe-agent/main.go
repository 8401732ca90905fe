package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/probelabs/probe-agent/internal/agent"
	"github.com/probelabs/probe-agent/internal/bashperm"
	"github.com/probelabs/probe-agent/internal/config"
	"github.com/probelabs/probe-agent/internal/llm/openai"
	"github.com/probelabs/probe-agent/internal/mcp"
	"github.com/probelabs/probe-agent/internal/persona"
	"github.com/probelabs/probe-agent/internal/search"
	"github.com/probelabs/probe-agent/internal/tool"
	"github.com/probelabs/probe-agent/internal/tool/builtin"
)

// cliOptions collects the flag values before they are resolved against the
// environment and the workspace config file.
type cliOptions struct {
	path          string
	prompt        string
	provider      string
	model         string
	schema        string
	allowEdit     bool
	allowedTools  []string
	disableTools  bool
	maxIterations int
	verbose       bool
	enableMCP     bool
}

func main() {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "probe-agent <question>",
		Short: "AI code-search agent over the probe engine",
		Long: `probe-agent answers questions about a codebase by driving an LLM
through code-search tools (search, query, extract) until it produces a
final answer via attempt_completion.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, strings.Join(args, " "))
		},
	}

	f := root.Flags()
	f.StringVar(&opts.path, "path", "", "workspace directory to search (default: WORKSPACE_DIR or cwd)")
	f.StringVar(&opts.prompt, "prompt", "", "persona name (code-explorer, engineer, code-review, support, architect) or path to a prompt file")
	f.StringVar(&opts.provider, "provider", "", "base URL of an OpenAI-compatible endpoint (default: LLM_BASE_URL)")
	f.StringVar(&opts.model, "model", "", "model name (default: LLM_MODEL)")
	f.StringVar(&opts.schema, "schema", "", "JSON Schema the final answer must validate against (inline JSON or a file path)")
	f.BoolVar(&opts.allowEdit, "allow-edit", false, "register the implement tool so the agent can delegate code changes")
	f.StringSliceVar(&opts.allowedTools, "allowed-tools", nil, "comma-separated whitelist of tool names")
	f.BoolVar(&opts.disableTools, "disable-tools", false, "answer without any tools (plain chat)")
	f.IntVar(&opts.maxIterations, "max-iterations", 0, "iteration budget for the loop (default: 30)")
	f.BoolVar(&opts.verbose, "verbose", false, "debug logging (raw turns, thinking, governor decisions)")
	f.BoolVar(&opts.enableMCP, "mcp", false, "connect MCP servers from the discovered config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *cliOptions, question string) error {
	config.LoadEnv()

	workspace := opts.path
	if workspace == "" {
		workspace = os.Getenv(config.EnvWorkspaceDir)
	}
	if workspace == "" {
		workspace, _ = os.Getwd()
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("resolving workspace path: %w", err)
	}
	if info, err := os.Stat(workspace); err != nil || !info.IsDir() {
		return fmt.Errorf("workspace %q does not exist or is not a directory", workspace)
	}

	settings, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if opts.verbose {
		settings.Debug = true
	}
	quiet := settings.NonInteractive

	// Flag > env/yaml > default.
	maxIterations := settings.MaxIterations
	if opts.maxIterations > 0 {
		maxIterations = opts.maxIterations
	}

	if opts.provider != "" {
		os.Setenv("LLM_BASE_URL", opts.provider)
	}
	llmClient, err := openai.NewClientFromEnv()
	if err != nil {
		return fmt.Errorf("initializing LLM client: %w", err)
	}
	model := opts.model
	if model == "" {
		model = llmClient.GetConfig().Model
	}
	if !quiet {
		fmt.Printf("🤖 LLM: %s @ %s\n", model, llmClient.GetConfig().BaseURL)
		fmt.Printf("📂 Workspace: %s\n", workspace)
	}

	// Audit log lives under the workspace. Failure to create it degrades to
	// running without the log.
	var execLogger *agent.ExecLogger
	logDir := filepath.Join(workspace, "logs")
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		execLogger, err = agent.NewExecLogger(filepath.Join(logDir, "agent_exec.md"))
		if err != nil {
			log.Printf("[CLI] Exec logger disabled: %v", err)
			execLogger = nil
		}
	} else {
		log.Printf("[CLI] Cannot create log directory %q: %v", logDir, err)
	}
	if execLogger != nil {
		defer execLogger.Close()
	}

	registry, err := buildRegistry(workspace, settings, opts, execLogger)
	if err != nil {
		return err
	}
	if err := registry.InitAll(ctx); err != nil {
		return fmt.Errorf("initializing tools: %w", err)
	}
	defer registry.CloseAll()

	// MCP servers join the same registry under mcp__<server>__<tool> names.
	if opts.enableMCP || os.Getenv(mcp.EnvConfigPath) != "" {
		if path, ok := mcp.DiscoverConfigPath(); ok {
			configs, err := mcp.LoadConfig(path)
			if err != nil {
				return err
			}
			mgr := mcp.NewManager()
			n, errs := mgr.Initialize(ctx, configs, registry)
			for _, e := range errs {
				log.Printf("[CLI] MCP: %v", e)
			}
			if !quiet && n > 0 {
				fmt.Printf("🔌 MCP: %d server(s) connected\n", n)
			}
			defer mgr.CloseAll(registry)
		} else if opts.enableMCP {
			log.Printf("[CLI] MCP enabled but no config found (set %s or create .mcp/config.json)", mcp.EnvConfigPath)
		}
	}

	personaText, err := resolvePersona(opts.prompt, settings)
	if err != nil {
		return err
	}

	schemaJSON, err := resolveSchema(opts.schema)
	if err != nil {
		return err
	}

	var allowed *tool.AllowedSet
	switch {
	case opts.disableTools:
		allowed = tool.NewAllowedSet(tool.ModeNone, nil)
	case len(opts.allowedTools) > 0:
		allowed = tool.NewAllowedSet(tool.ModeWhitelist, opts.allowedTools)
	}

	session, err := agent.NewSession(agent.Options{
		Client:        llmClient,
		Registry:      registry,
		Workdir:       workspace,
		Allowed:       allowed,
		Persona:       personaText,
		Model:         model,
		MaxIterations: maxIterations,
		MaxOutput:     settings.MaxOutputTokens,
		SchemaJSON:    schemaJSON,
		ContextTokens: llmClient.GetConfig().ContextWindow,
		Logger:        execLogger,
		Debug:         settings.Debug,
	})
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("🛠️  Tools: %d registered, session %s\n", len(registry.List()), session.ID())
	}

	answer, err := session.Answer(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// buildRegistry registers every built-in tool the session may use. The
// implement tool only joins when edits are explicitly allowed.
func buildRegistry(workspace string, settings config.Settings, opts *cliOptions, execLogger *agent.ExecLogger) (*tool.Registry, error) {
	confine, err := builtin.NewConfine(workspace)
	if err != nil {
		return nil, err
	}
	engine := search.NewProbe(workspace)

	var audit bashperm.AuditSink
	if execLogger != nil {
		audit = execLogger.BashAudit()
	}
	checker := bashperm.NewChecker(settings.Bash.Allow, settings.Bash.Deny, audit)

	registry := tool.NewRegistry()
	registry.Register(builtin.NewSearchTool(engine))
	registry.Register(builtin.NewQueryTool(engine))
	registry.Register(builtin.NewExtractTool(engine, confine))
	registry.Register(builtin.NewListFilesTool(confine))
	registry.Register(builtin.NewSearchFilesTool(confine))
	registry.Register(builtin.NewBashTool(checker, workspace))
	registry.Register(builtin.NewReadImageTool(confine))
	registry.Register(builtin.NewAttemptCompletionTool())

	if opts.allowEdit {
		command := os.Getenv("IMPLEMENT_COMMAND")
		if command == "" {
			command = "aider"
		}
		registry.Register(builtin.NewImplementTool(command, nil, workspace))
	}
	return registry, nil
}

// resolvePersona turns the --prompt value into preamble text. A known persona
// name loads from the persona set (with PersonaDir overrides); anything else
// is treated as a file path.
func resolvePersona(flagValue string, settings config.Settings) (string, error) {
	name := flagValue
	if name == "" {
		name = settings.Persona
	}

	loader := persona.NewLoader(settings.PersonaDir)
	for _, known := range persona.Names() {
		if name == known || name == "" {
			return loader.Load(name)
		}
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("--prompt %q is neither a persona (%s) nor a readable file: %w",
			name, strings.Join(persona.Names(), ", "), err)
	}
	return string(data), nil
}

// resolveSchema accepts inline JSON or a path to a schema file.
func resolveSchema(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(strings.TrimSpace(value), "{") {
		return value, nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("reading schema file %q: %w", value, err)
	}
	return string(data), nil
}
