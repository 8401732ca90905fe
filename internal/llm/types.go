package llm

import "context"

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types for structured message content.
const (
	PartText  = "text"
	PartImage = "image"
)

// ContentPart is one element of a structured message. Text parts carry plain
// text; image parts carry a data URL plus the sniffed MIME type.
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"` // data:<mime>;base64,<payload>
	MimeType string `json:"mime_type,omitempty"`
}

// Message is one turn in the conversation. Content holds plain text; Parts is
// set instead when the turn carries images. Exactly one of the two is used.
//
// Segment and Synthetic are conversation bookkeeping, not wire fields: the
// compactor assigns Segment (a new segment starts at every human user turn),
// and Synthetic marks tool-result user turns the loop fabricates so the
// compactor can tell them apart from the human's own questions.
type Message struct {
	Role      string        `json:"role"`
	Content   string        `json:"content,omitempty"`
	Parts     []ContentPart `json:"parts,omitempty"`
	Segment   int           `json:"segment,omitempty"`
	Synthetic bool          `json:"synthetic,omitempty"`
	Tool      string        `json:"tool,omitempty"` // for synthetic tool-result turns: the tool that produced it
}

// Text flattens the message content to plain text, joining text parts with
// newlines and skipping image parts.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type != PartText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// TextMessage builds a plain-text message.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// Usage reports token accounting for one model round-trip.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another round-trip's counters. Counters only grow, so a
// running total is monotonic non-decreasing over a session.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// Response is the result of one Generate call.
type Response struct {
	Text         string `json:"text"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Options tune a single Generate call. Zero values mean "provider default".
type Options struct {
	Model       string
	Temperature *float32
	MaxTokens   int
}

// Client is the capability the agent loop consumes. Implementations wrap a
// provider transport; the loop never sees HTTP details. Any provider-native
// tool events are expected to be re-presented as prose inside Response.Text —
// the loop dispatches only tools parsed from the text itself.
type Client interface {
	// Generate sends the running conversation and returns the next
	// assistant turn. Implementations handle transient-transport retries;
	// a returned error is terminal for the current turn.
	Generate(ctx context.Context, messages []Message, opts Options) (Response, error)
}
