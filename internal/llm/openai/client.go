package openai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/probelabs/probe-agent/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Client implements llm.Client using the OpenAI-compatible protocol.
// Works with any endpoint that supports the OpenAI chat completions API.
type Client struct {
	client *openailib.Client
	config *Config
}

// GetConfig returns the client's configuration.
func (c *Client) GetConfig() *Config {
	return c.config
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// NewClientFromEnv creates a client using environment variables.
func NewClientFromEnv() (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(config)
}

// Generate sends the conversation and returns the next assistant turn.
// Transient transport errors are retried with linear backoff up to
// Config.MaxRetries; the final error is terminal for the current turn.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Response, error) {
	if len(messages) == 0 {
		return llm.Response{}, fmt.Errorf("no messages to send")
	}

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	switch {
	case opts.Temperature != nil:
		req.Temperature = *opts.Temperature
	case c.config.Temperature != nil:
		req.Temperature = *c.config.Temperature
	}
	switch {
	case opts.MaxTokens > 0:
		req.MaxTokens = opts.MaxTokens
	case c.config.MaxTokens > 0:
		req.MaxTokens = c.config.MaxTokens
	}

	// Execute with retries
	var resp openailib.ChatCompletionResponse
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if attempt < c.config.MaxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Printf("[LLM] Retry %d/%d after %v, error: %v", attempt+1, c.config.MaxRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return llm.Response{}, ctx.Err()
			}
		}
	}

	if lastErr != nil {
		return llm.Response{}, fmt.Errorf("LLM call failed after %d retries: %w", c.config.MaxRetries, lastErr)
	}

	if len(resp.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("no choices returned from LLM")
	}

	choice := resp.Choices[0]
	return llm.Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// toOpenAIMessages converts the internal message model to the wire format.
// Messages with image parts use the multi-part content form; everything else
// stays a plain string to keep request bodies small.
func toOpenAIMessages(messages []llm.Message) []openailib.ChatCompletionMessage {
	out := make([]openailib.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		if len(msg.Parts) == 0 {
			out[i] = openailib.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			}
			continue
		}

		parts := make([]openailib.ChatMessagePart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch p.Type {
			case llm.PartImage:
				parts = append(parts, openailib.ChatMessagePart{
					Type: openailib.ChatMessagePartTypeImageURL,
					ImageURL: &openailib.ChatMessageImageURL{
						URL: p.ImageURL,
					},
				})
			default:
				parts = append(parts, openailib.ChatMessagePart{
					Type: openailib.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
		out[i] = openailib.ChatCompletionMessage{
			Role:         msg.Role,
			MultiContent: parts,
		}
	}
	return out
}

// GetName returns the provider name.
func (c *Client) GetName() string {
	return fmt.Sprintf("openai-compatible (%s)", c.config.Model)
}
