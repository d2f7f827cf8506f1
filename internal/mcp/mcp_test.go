package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RagChat/internal/responder"
	"RagChat/internal/session"
)

// docServer is a fake MCP server exposing one document query tool
type docServer struct {
	mu    sync.Mutex
	calls []CallToolParams
}

func (d *docServer) handle(req JSONRPCRequest, raw json.RawMessage) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
	var result interface{}
	switch req.Method {
	case MethodInitialize:
		result = InitializeResult{ProtocolVersion: ProtocolVersion, ServerInfo: ServerInfo{Name: "docs", Version: "0.1"}}
	case MethodListTools:
		result = ListToolsResult{Tools: []ToolInfo{{Name: DefaultQueryTool, Description: "Answer from tenant documents"}}}
	case MethodCallTool:
		var envelope struct {
			Params CallToolParams `json:"params"`
		}
		_ = json.Unmarshal(raw, &envelope)
		d.mu.Lock()
		d.calls = append(d.calls, envelope.Params)
		d.mu.Unlock()

		question, _ := envelope.Params.Arguments["question"].(string)
		switch question {
		case "fail":
			result = CallToolResult{IsError: true, Content: []Content{{Type: "text", Text: "index unavailable"}}}
		case "silent":
			result = CallToolResult{}
		default:
			result = CallToolResult{Content: []Content{
				{Type: "text", Text: "Invoices are due in 30 days."},
				{Type: "text", Text: "Source: handbook.pdf"},
			}}
		}
	default:
		resp.Error = &RPCError{Code: -32601, Message: "method not found"}
		return resp
	}
	resp.Result, _ = json.Marshal(result)
	return resp
}

func (d *docServer) lastCall() CallToolParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

func newHTTPDocServer(t *testing.T) (*docServer, *httptest.Server) {
	d := &docServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc", r.URL.Path)
		var raw json.RawMessage
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw)) {
			return
		}
		var req JSONRPCRequest
		_ = json.Unmarshal(raw, &req)
		_ = json.NewEncoder(w).Encode(d.handle(req, raw))
	}))
	t.Cleanup(srv.Close)
	return d, srv
}

func newWSDocServer(t *testing.T) (*docServer, *httptest.Server) {
	d := &docServer{}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req JSONRPCRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			if req.Method == MethodCallTool && strings.Contains(string(data), `"hang"`) {
				continue
			}
			if err := conn.WriteJSON(d.handle(req, data)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return d, srv
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	d, srv := newHTTPDocServer(t)
	ctx := context.Background()

	client, err := Connect(ctx, srv.URL, nil)
	require.NoError(t, err)
	defer client.Close()
	assert.IsType(t, &HTTPClient{}, client)

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, DefaultQueryTool, tools[0].Name)
	assert.Equal(t, srv.URL, tools[0].ServerName)

	result, err := client.CallTool(ctx, DefaultQueryTool, map[string]interface{}{"question": "due?"})
	require.NoError(t, err)
	require.Len(t, result.Content, 2)
	assert.Equal(t, "due?", d.lastCall().Arguments["question"])
}

func TestHTTPClient_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient("broken", srv.URL, nil)
	require.NoError(t, err)

	err = client.Initialize(context.Background())
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
}

func TestHTTPClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewHTTPClient("down", srv.URL, nil)
	require.NoError(t, err)
	_, err = client.ListTools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error 502")
}

func TestWebSocketClient_RoundTrip(t *testing.T) {
	d, srv := newWSDocServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx := context.Background()

	client, err := Connect(ctx, url, nil)
	require.NoError(t, err)
	defer client.Close()
	assert.IsType(t, &WebSocketClient{}, client)

	registry := NewClientRegistry()
	registry.Register(client)
	tools := registry.Refresh(ctx, nil)
	require.Len(t, tools, 1)

	q := NewQueryResponder(registry, "", nil)
	reply, err := q.GenerateReply(ctx, responder.Request{
		ConversationID: "c1",
		Text:           "When are invoices due?",
		Scope:          session.Scoped{Tenant: "tenant-1", Entity: "entity-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Invoices are due in 30 days.\nSource: handbook.pdf", reply)

	call := d.lastCall()
	assert.Equal(t, DefaultQueryTool, call.Name)
	assert.Equal(t, "tenant-1", call.Arguments["tenant"])
	assert.Equal(t, "entity-3", call.Arguments["entity"])
	assert.Equal(t, "c1", call.Arguments["conversation_id"])
}

func TestWebSocketClient_DeadlineClosesConnection(t *testing.T) {
	_, srv := newWSDocServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	client, err := NewWebSocketClient(context.Background(), "ws", url, nil)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.CallTool(ctx, DefaultQueryTool, map[string]interface{}{"question": "hang"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = client.ListTools(context.Background())
	assert.ErrorContains(t, err, "client is closed")
}

func TestQueryResponder_Failures(t *testing.T) {
	_, srv := newHTTPDocServer(t)
	ctx := context.Background()

	client, err := Connect(ctx, srv.URL, nil)
	require.NoError(t, err)
	registry := NewClientRegistry()
	registry.Register(client)
	defer registry.Close()

	missing := NewQueryResponder(registry, "search", nil)
	registry.Refresh(ctx, nil)
	_, err = missing.GenerateReply(ctx, responder.Request{Text: "x"})
	assert.EqualError(t, err, "tool search not found")

	q := NewQueryResponder(registry, DefaultQueryTool, nil)
	_, err = q.GenerateReply(ctx, responder.Request{Text: "fail"})
	assert.EqualError(t, err, "tool query_documents failed: index unavailable")

	_, err = q.GenerateReply(ctx, responder.Request{Text: "silent"})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestQueryArguments_BareScope(t *testing.T) {
	args := QueryArguments(responder.Request{ConversationID: "c9", Text: "hi", Scope: session.Bare{}})
	assert.Equal(t, map[string]interface{}{"question": "hi", "conversation_id": "c9"}, args)
}

func TestTransportFor(t *testing.T) {
	assert.Equal(t, "websocket", transportFor("wss://docs.example.com/mcp"))
	assert.Equal(t, "http", transportFor("https://docs.example.com"))
	assert.Equal(t, "stdio", transportFor("python3 servers/docs.py"))
}

func TestClientRegistry_Tools(t *testing.T) {
	_, a := newHTTPDocServer(t)
	_, b := newHTTPDocServer(t)
	ctx := context.Background()

	registry := NewClientRegistry()
	for _, url := range []string{a.URL, b.URL} {
		client, err := Connect(ctx, url, nil)
		require.NoError(t, err)
		registry.Register(client)
	}
	defer registry.Close()

	all := registry.Refresh(ctx, nil)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, registry.Count())
	require.Len(t, registry.Tools(), 1, "duplicate tool names are indexed once")

	client, err := registry.ClientFor(DefaultQueryTool)
	require.NoError(t, err)
	_, ok := registry.Get(client.Name())
	assert.True(t, ok)
}
