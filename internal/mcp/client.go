// Package mcp talks JSON-RPC to Model Context Protocol servers over stdio,
// HTTP and WebSocket, and exposes a document query tool as a responder.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Client represents a connection to an MCP server
type Client interface {
	// Initialize performs the MCP handshake
	Initialize(ctx context.Context) error

	// ListTools returns available tools from this MCP server
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes a tool with given arguments
	CallTool(ctx context.Context, toolName string, args map[string]interface{}) (*CallToolResult, error)

	// Close disconnects from the MCP server
	Close() error

	// Name returns the client identifier
	Name() string
}

// Tool represents an MCP tool available for invocation
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	ServerName  string
}

// rpc holds the method layer shared by every transport
type rpc struct {
	name   string
	reqID  atomic.Int32
	logger *slog.Logger
	send   func(ctx context.Context, req JSONRPCRequest) (JSONRPCResponse, error)
}

func (c *rpc) Name() string {
	return c.name
}

func (c *rpc) call(ctx context.Context, method string, params, result interface{}) error {
	req := newRequest(int(c.reqID.Add(1)), method, params)
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if resp.ID != 0 && resp.ID != req.ID {
		return fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID)
	}
	return decodeResult(resp, result)
}

func (c *rpc) Initialize(ctx context.Context) error {
	var result InitializeResult
	if err := c.call(ctx, MethodInitialize, initializeParams(), &result); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	c.logger.Info("MCP server initialized",
		"server", result.ServerInfo.Name,
		"version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion)
	return nil
}

func (c *rpc) ListTools(ctx context.Context) ([]Tool, error) {
	var result ListToolsResult
	if err := c.call(ctx, MethodListTools, nil, &result); err != nil {
		return nil, fmt.Errorf("list tools failed: %w", err)
	}

	tools := make([]Tool, len(result.Tools))
	for i, info := range result.Tools {
		tools[i] = Tool{
			Name:        info.Name,
			Description: info.Description,
			InputSchema: info.InputSchema,
			ServerName:  c.name,
		}
	}
	c.logger.Info("listed tools from MCP server", "server", c.name, "count", len(tools))
	return tools, nil
}

func (c *rpc) CallTool(ctx context.Context, toolName string, args map[string]interface{}) (*CallToolResult, error) {
	var result CallToolResult
	params := CallToolParams{Name: toolName, Arguments: args}
	if err := c.call(ctx, MethodCallTool, params, &result); err != nil {
		return nil, fmt.Errorf("call tool failed: %w", err)
	}
	c.logger.Debug("called tool", "server", c.name, "tool", toolName)
	return &result, nil
}

// Connect opens and initializes a client for target. ws:// and wss:// URLs
// use WebSocket, http:// and https:// use HTTP, anything else is run as a
// local command speaking MCP on stdio.
func Connect(ctx context.Context, target string, logger *slog.Logger) (Client, error) {
	var (
		client Client
		err    error
	)
	switch transportFor(target) {
	case "websocket":
		client, err = NewWebSocketClient(ctx, target, target, logger)
	case "http":
		client, err = NewHTTPClient(target, target, logger)
	default:
		client, err = NewStdioClient(target, target, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func transportFor(target string) string {
	switch {
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		return "websocket"
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return "http"
	default:
		return "stdio"
	}
}

// ClientRegistry manages multiple MCP clients
type ClientRegistry struct {
	clients map[string]Client
	tools   map[string]Tool
	mu      sync.RWMutex
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]Client),
		tools:   make(map[string]Tool),
	}
}

// Register adds a client to the registry
func (r *ClientRegistry) Register(client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
}

// Get retrieves a client by name
func (r *ClientRegistry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	return client, ok
}

// All returns all registered clients ordered by name
func (r *ClientRegistry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name() < clients[j].Name() })
	return clients
}

// Count returns the number of registered clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Refresh reloads the tool index from every client. Servers that fail to
// list their tools are skipped.
func (r *ClientRegistry) Refresh(ctx context.Context, logger *slog.Logger) []Tool {
	if logger == nil {
		logger = slog.Default()
	}
	tools := make(map[string]Tool)
	var all []Tool
	for _, client := range r.All() {
		listed, err := client.ListTools(ctx)
		if err != nil {
			logger.Warn("failed to list tools from MCP server", "server", client.Name(), "error", err)
			continue
		}
		for _, tool := range listed {
			if _, dup := tools[tool.Name]; !dup {
				tools[tool.Name] = tool
			}
		}
		all = append(all, listed...)
	}

	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()
	return all
}

// Tools returns the indexed tools ordered by name
func (r *ClientRegistry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// ClientFor returns the client serving toolName. The first server to list a
// tool wins.
func (r *ClientRegistry) ClientFor(toolName string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}
	client, ok := r.clients[tool.ServerName]
	if !ok {
		return nil, fmt.Errorf("server %s not found for tool %s", tool.ServerName, toolName)
	}
	return client, nil
}

// Close closes all registered clients
func (r *ClientRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close client %s: %w", name, err)
		}
	}
	return firstErr
}
