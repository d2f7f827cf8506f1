package backend

import (
	"context"
	"net/http"
)

// OllamaRequest represents the request body for Ollama API
type OllamaRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// OllamaResponse represents the response from Ollama API
type OllamaResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`
}

// OllamaTagsResponse represents the response from Ollama /api/tags endpoint
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel represents a single model in the Ollama tags response
type OllamaModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

func (c *Client) callOllama(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	if system != "" {
		messages = append([]ChatMessage{{Role: "system", Content: system}}, messages...)
	}
	reqBody := OllamaRequest{
		Model:    c.settings.Model,
		Messages: messages,
		Stream:   false,
	}

	var apiResp OllamaResponse
	if err := c.postJSON(ctx, "/api/chat", nil, reqBody, &apiResp); err != nil {
		return "", err
	}
	return apiResp.Message.Content, nil
}

// ListModels fetches the models an Ollama server has pulled
func (c *Client) ListModels(ctx context.Context) ([]OllamaModel, error) {
	var tagsResp OllamaTagsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, nil, &tagsResp); err != nil {
		return nil, err
	}
	return tagsResp.Models, nil
}
