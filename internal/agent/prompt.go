package agent

import (
	"fmt"
	"strings"

	"github.com/probelabs/probe-agent/internal/tool"
)

// BuildSystemPrompt assembles the session's system message: persona
// preamble, the rendered tool sections, an optional schema section, and the
// working-directory notice. extra is the caller's custom fragment, appended
// last.
func BuildSystemPrompt(persona string, reg *tool.Registry, allowed *tool.AllowedSet, schemaJSON, workdir, extra string) string {
	var sb strings.Builder

	if p := strings.TrimSpace(persona); p != "" {
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}

	sb.WriteString(reg.RenderToolsSection(allowed))

	if schemaJSON != "" {
		sb.WriteString("## Schema\n\n")
		sb.WriteString("Your final answer must be a single JSON object matching this schema:\n\n")
		sb.WriteString("```json\n")
		sb.WriteString(strings.TrimSpace(schemaJSON))
		sb.WriteString("\n```\n\n")
		sb.WriteString("Return only the JSON object matching this schema via `attempt_completion`.\n\n")
	}

	if workdir != "" {
		sb.WriteString(fmt.Sprintf("Working directory: %s. Relative paths resolve against it; only files under the allowed folders may be accessed.\n", workdir))
	}

	if e := strings.TrimSpace(extra); e != "" {
		sb.WriteString("\n")
		sb.WriteString(e)
		sb.WriteString("\n")
	}

	return sb.String()
}
