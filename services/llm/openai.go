package llm

import (
	"context"
	"net/http"
	"time"
)

// OpenAIClient calls the OpenAI chat-completions API
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAIClient creates a new OpenAI provider client
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultCompletionTimeout
	}

	return &OpenAIClient{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name used in logs
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends a chat completion request and returns the raw content
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return sendChatCompletion(ctx, c.httpClient, c.baseURL, c.apiKey, c.model, req)
}
