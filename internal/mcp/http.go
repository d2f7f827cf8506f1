package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// HTTPClient implements Client for remote MCP servers that accept JSON-RPC
// posts on <baseURL>/rpc
type HTTPClient struct {
	rpc
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP-based MCP client for remote servers
func NewHTTPClient(name string, baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("MCP server URL is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// calls are bounded by the caller's context
		httpClient: &http.Client{},
	}
	c.rpc.name = name
	c.rpc.logger = logger.With("component", "mcp", "transport", "http")
	c.rpc.send = c.roundTrip

	c.logger.Info("created MCP HTTP client", "name", name, "url", baseURL)
	return c, nil
}

// Close drops idle pooled connections
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	c.logger.Info("closed MCP HTTP client", "name", c.name)
	return nil
}

func (c *HTTPClient) roundTrip(ctx context.Context, request JSONRPCRequest) (JSONRPCResponse, error) {
	var response JSONRPCResponse

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return response, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewBuffer(requestJSON))
	if err != nil {
		return response, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return response, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return response, nil
}
