package llm

import (
	"context"
	"net/http"
	"time"
)

// DeepSeekClient calls the DeepSeek chat-completions API, which is
// OpenAI-compatible. It serves as the fallback provider.
type DeepSeekClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// DeepSeekConfig holds configuration for the DeepSeek client
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewDeepSeekClient creates a new DeepSeek provider client
func NewDeepSeekClient(config DeepSeekConfig) *DeepSeekClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepseek.com"
	}
	if config.Model == "" {
		config.Model = "deepseek-chat"
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultCompletionTimeout
	}

	return &DeepSeekClient{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name used in logs
func (c *DeepSeekClient) Name() string {
	return "deepseek"
}

// Complete sends a chat completion request and returns the raw content
func (c *DeepSeekClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return sendChatCompletion(ctx, c.httpClient, c.baseURL, c.apiKey, c.model, req)
}
