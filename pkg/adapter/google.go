package adapter

import (
	"context"
	"fmt"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"google.golang.org/genai"
)

// GoogleInvoker invokes Gemini backends.
type GoogleInvoker struct {
	client *genai.Client
}

// NewGoogleInvoker creates a Google Gemini invoker.
func NewGoogleInvoker(apiKey string) (*GoogleInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleInvoker{client: client}, nil
}

// Name returns the provider label.
func (a *GoogleInvoker) Name() string {
	return "google"
}

// Invoke sends a prompt to Gemini and returns the normalized result.
func (a *GoogleInvoker) Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error) {
	resp, err := a.client.Models.GenerateContent(ctx, backend.ID, genai.Text(prompt), nil)
	if err != nil {
		return nil, &InvokeError{Err: fmt.Errorf("google API error: %w", err)}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &InvokeError{Err: fmt.Errorf("google returned no candidates")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	var inputTokens, outputTokens int
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return NewResult(content, inputTokens, outputTokens, backend), nil
}
