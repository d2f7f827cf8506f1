package backend

import (
	"context"
	"fmt"
)

// AnthropicRequest represents the request body for Anthropic API
type AnthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// AnthropicContent is one content block of a response
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicResponse represents the response from Anthropic API
type AnthropicResponse struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Role         string                 `json:"role"`
	Content      []AnthropicContent     `json:"content"`
	Model        string                 `json:"model"`
	StopReason   string                 `json:"stop_reason"`
	StopSequence string                 `json:"stop_sequence"`
	Usage        map[string]interface{} `json:"usage"`
}

func (c *Client) callAnthropic(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	reqBody := AnthropicRequest{
		Model:     c.settings.Model,
		MaxTokens: c.settings.MaxTokens,
		System:    system,
		Messages:  messages,
	}

	headers := map[string]string{
		"x-api-key":         c.settings.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var apiResp AnthropicResponse
	if err := c.postJSON(ctx, "/v1/messages", headers, reqBody, &apiResp); err != nil {
		return "", err
	}

	c.recordUsage(ctx, apiResp.Usage)

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Anthropic")
}
