package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketClient implements Client for remote MCP servers via WebSocket.
// Requests are serialized on the single connection.
type WebSocketClient struct {
	rpc
	url    string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient dials url and returns a client over the connection
func NewWebSocketClient(ctx context.Context, name string, url string, logger *slog.Logger) (*WebSocketClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c := &WebSocketClient{
		url:  url,
		conn: conn,
	}
	c.rpc.name = name
	c.rpc.logger = logger.With("component", "mcp", "transport", "websocket")
	c.rpc.send = c.roundTrip

	c.logger.Info("created MCP WebSocket client", "name", name, "url", url)
	return c, nil
}

// Close disconnects from the MCP server
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := c.conn.Close()

	c.logger.Info("closed MCP WebSocket client", "name", c.name)
	return err
}

func (c *WebSocketClient) roundTrip(ctx context.Context, request JSONRPCRequest) (JSONRPCResponse, error) {
	var response JSONRPCResponse

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return response, fmt.Errorf("client is closed")
	}

	// gorilla connections take deadlines, not contexts
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteJSON(request); err != nil {
		return response, c.wrapErr(ctx, "failed to write request", err)
	}
	if err := c.conn.ReadJSON(&response); err != nil {
		return response, c.wrapErr(ctx, "failed to read response", err)
	}
	return response, nil
}

// wrapErr reports ctx errors in place of the deadline errors they caused.
// A timed-out read leaves the connection unusable, so it is closed.
func (c *WebSocketClient) wrapErr(ctx context.Context, msg string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// the connection deadline mirrors ctx, which is about to be done
		if _, ok := ctx.Deadline(); ok || ctx.Err() != nil {
			<-ctx.Done()
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.closed = true
		c.conn.Close()
		return fmt.Errorf("%s: %w", msg, errors.Join(ctxErr, err))
	}
	return fmt.Errorf("%s: %w", msg, err)
}
