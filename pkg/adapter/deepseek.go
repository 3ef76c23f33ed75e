package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zen-systems/tiergate/pkg/catalog"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekInvoker invokes DeepSeek backends over their
// OpenAI-compatible HTTP API.
type DeepSeekInvoker struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewDeepSeekInvoker creates a DeepSeek invoker.
func NewDeepSeekInvoker(apiKey string) (*DeepSeekInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	return &DeepSeekInvoker{
		apiKey:     apiKey,
		baseURL:    deepseekBaseURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider label.
func (a *DeepSeekInvoker) Name() string {
	return "deepseek"
}

// Invoke sends a prompt to DeepSeek and returns the normalized result.
func (a *DeepSeekInvoker) Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error) {
	reqBody := deepseekRequest{
		Model: backend.ID,
		Messages: []deepseekMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: 4096,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &InvokeError{Temporary: true, Err: fmt.Errorf("deepseek API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var deepseekResp deepseekResponse
	if err := json.Unmarshal(body, &deepseekResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if deepseekResp.Error != nil {
		return nil, &InvokeError{
			Status: resp.StatusCode,
			Err: fmt.Errorf("deepseek API error: %s (type: %s, code: %s)",
				deepseekResp.Error.Message, deepseekResp.Error.Type, deepseekResp.Error.Code),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &InvokeError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("deepseek API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	if len(deepseekResp.Choices) == 0 {
		return nil, &InvokeError{Err: fmt.Errorf("deepseek returned no choices")}
	}

	content := deepseekResp.Choices[0].Message.Content
	return NewResult(content, deepseekResp.Usage.PromptTokens, deepseekResp.Usage.CompletionTokens, backend), nil
}
