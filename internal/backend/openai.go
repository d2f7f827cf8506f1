package backend

import (
	"context"
	"fmt"
)

// OpenAIRequest represents the request body for OpenAI-compatible APIs
type OpenAIRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// OpenAIResponse represents the response from OpenAI-compatible APIs
type OpenAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// callOpenAI serves both the OpenAI and Grok providers
func (c *Client) callOpenAI(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	if system != "" {
		messages = append([]ChatMessage{{Role: "system", Content: system}}, messages...)
	}
	reqBody := OpenAIRequest{
		Model:    c.settings.Model,
		Messages: messages,
	}

	headers := map[string]string{"Authorization": "Bearer " + c.settings.APIKey}

	var apiResp OpenAIResponse
	if err := c.postJSON(ctx, "/v1/chat/completions", headers, reqBody, &apiResp); err != nil {
		return "", err
	}

	c.recordUsage(ctx, apiResp.Usage)

	if len(apiResp.Choices) > 0 {
		return apiResp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("empty response from %s", c.settings.Provider)
}
