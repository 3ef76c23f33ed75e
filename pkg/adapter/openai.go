package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zen-systems/tiergate/pkg/catalog"
)

// OpenAIInvoker invokes OpenAI backends.
type OpenAIInvoker struct {
	client openai.Client
}

// NewOpenAIInvoker creates an OpenAI invoker.
func NewOpenAIInvoker(apiKey string) (*OpenAIInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIInvoker{client: client}, nil
}

// Name returns the provider label.
func (a *OpenAIInvoker) Name() string {
	return "openai"
}

// Invoke sends a prompt to OpenAI and returns the normalized result.
func (a *OpenAIInvoker) Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(backend.ID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return nil, &InvokeError{Err: fmt.Errorf("openai API error: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, &InvokeError{Err: fmt.Errorf("openai returned no choices")}
	}

	content := resp.Choices[0].Message.Content
	return NewResult(content, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), backend), nil
}
