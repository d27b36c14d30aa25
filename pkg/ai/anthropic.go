package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AnthropicProvider implements ChatProvider for Anthropic Claude
type AnthropicProvider struct {
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	logger    *zap.Logger
	baseURL   string
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, model string, maxTokens int, timeout time.Duration, logger *zap.Logger) *AnthropicProvider {
	if apiKey == "" {
		return &AnthropicProvider{logger: logger}
	}

	return &AnthropicProvider{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		baseURL:   "https://api.anthropic.com/v1",
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is available
func (p *AnthropicProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Chat sends the whole history to the Messages API
func (p *AnthropicProvider) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	if !p.IsAvailable() {
		return "", ErrUnavailable
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	requestBody := map[string]interface{}{
		"model":       p.model,
		"max_tokens":  maxTokens,
		"system":      req.System,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}

	var anthropicResp struct {
		Content []struct {
			Text string `json:"text"`
			Type string `json:"type"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := doJSON(ctx, p.client, "Anthropic", p.baseURL+"/messages", headers, requestBody, &anthropicResp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, c := range anthropicResp.Content {
		if c.Type == "" || c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no content in Anthropic response (stop_reason=%s)", anthropicResp.StopReason)
	}
	return text, nil
}
