package schema

import (
	"fmt"
	"strings"
)

// MaxRepairAttempts bounds the self-repair loop, counting the first fix
// attempt as attempt 1.
const MaxRepairAttempts = 3

// JSONRepairSystemPrompt is the system prompt for the isolated repair agent.
const JSONRepairSystemPrompt = `You are a JSON syntax correction specialist. You receive malformed or schema-violating JSON and must return only the corrected JSON object, with no commentary, no markdown fences, and no surrounding text.`

// MermaidRepairSystemPrompt is the system prompt for the Mermaid specialist.
const MermaidRepairSystemPrompt = `You are a Mermaid diagram syntax correction specialist. You receive a broken Mermaid diagram and must return only the corrected diagram source, with no commentary, no markdown fences, and no surrounding text.`

// BuildRepairPrompt renders the correction request for one repair attempt.
// The tone escalates with the attempt number and caps at a final-attempt
// variant; the invalid text, the schema, and the enhanced error always ride
// along so the specialist has everything in one message.
func BuildRepairPrompt(invalid, schemaJSON string, verr error, attempt int) string {
	var sb strings.Builder

	switch {
	case attempt <= 1:
		sb.WriteString("The following response does not satisfy the required JSON schema. Correct it.\n\n")
	case attempt < MaxRepairAttempts:
		fmt.Fprintf(&sb, "Attempt %d of %d. The previous correction still fails validation. Fix every issue listed below, and change nothing else.\n\n", attempt, MaxRepairAttempts)
	default:
		sb.WriteString("FINAL ATTEMPT. The response has failed validation repeatedly. Return a minimal JSON object that satisfies the schema exactly, preserving as much of the original content as possible.\n\n")
	}

	sb.WriteString("Validation error:\n")
	sb.WriteString(verr.Error())
	sb.WriteString("\n\nRequired schema:\n```json\n")
	sb.WriteString(strings.TrimSpace(schemaJSON))
	sb.WriteString("\n```\n\nInvalid response:\n```\n")
	sb.WriteString(invalid)
	sb.WriteString("\n```\n\nReturn only the corrected JSON.")
	return sb.String()
}

// BuildMermaidRepairPrompt is the Mermaid analogue of BuildRepairPrompt.
func BuildMermaidRepairPrompt(diagram string, verr error, attempt int) string {
	var sb strings.Builder
	if attempt >= MaxRepairAttempts {
		sb.WriteString("FINAL ATTEMPT. ")
	}
	fmt.Fprintf(&sb, "The following Mermaid diagram is invalid: %v\n\n```mermaid\n%s\n```\n\nReturn only the corrected diagram source.", verr, diagram)
	return sb.String()
}
