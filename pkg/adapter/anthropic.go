package adapter

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/zen-systems/tiergate/pkg/catalog"
)

// AnthropicInvoker invokes Claude backends.
type AnthropicInvoker struct {
	client anthropic.Client
}

// NewAnthropicInvoker creates an Anthropic invoker.
func NewAnthropicInvoker(apiKey string) (*AnthropicInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicInvoker{client: client}, nil
}

// Name returns the provider label.
func (a *AnthropicInvoker) Name() string {
	return "anthropic"
}

// Invoke sends a prompt to Claude and returns the normalized result.
func (a *AnthropicInvoker) Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(backend.ID),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, &InvokeError{Err: fmt.Errorf("anthropic API error: %w", err)}
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return NewResult(content, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), backend), nil
}
