package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// StdioClient implements Client for local MCP servers speaking
// newline-delimited JSON-RPC on stdin/stdout
type StdioClient struct {
	rpc
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	scanner *bufio.Scanner
	mu      sync.Mutex
	closed  bool
}

// NewStdioClient starts command and talks MCP over its stdio. A command
// ending in .py is run with python3.
func NewStdioClient(name string, command string, logger *slog.Logger) (*StdioClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, fmt.Errorf("MCP server command is empty")
	}
	if len(args) == 1 && strings.HasSuffix(args[0], ".py") {
		args = []string{"python3", args[0]}
	}

	cmd := exec.Command(args[0], args[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start MCP server process: %w", err)
	}

	c := &StdioClient{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		scanner: bufio.NewScanner(stdout),
	}
	c.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	c.rpc.name = name
	c.rpc.logger = logger.With("component", "mcp", "transport", "stdio")
	c.rpc.send = c.roundTrip

	go c.logStderr()

	c.logger.Info("started MCP stdio client", "name", name, "command", command)
	return c, nil
}

// Close stops the server process
func (c *StdioClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown()
	return nil
}

// shutdown expects c.mu to be held
func (c *StdioClient) shutdown() {
	if c.closed {
		return
	}
	c.closed = true

	c.stdin.Close()
	if c.cmd.Process != nil {
		if err := c.cmd.Process.Kill(); err != nil {
			c.logger.Warn("failed to kill MCP server process", "error", err)
		}
		_ = c.cmd.Wait()
	}
	c.logger.Info("closed MCP stdio client", "name", c.name)
}

type lineResult struct {
	line []byte
	err  error
}

func (c *StdioClient) roundTrip(ctx context.Context, request JSONRPCRequest) (JSONRPCResponse, error) {
	var response JSONRPCResponse

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return response, fmt.Errorf("client is closed")
	}

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return response, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(requestJSON, '\n')); err != nil {
		return response, fmt.Errorf("failed to write request: %w", err)
	}

	read := make(chan lineResult, 1)
	go func() {
		if !c.scanner.Scan() {
			err := c.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			read <- lineResult{err: err}
			return
		}
		read <- lineResult{line: append([]byte(nil), c.scanner.Bytes()...)}
	}()

	select {
	case res := <-read:
		if res.err != nil {
			return response, fmt.Errorf("failed to read response: %w", res.err)
		}
		if err := json.Unmarshal(res.line, &response); err != nil {
			return response, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return response, nil
	case <-ctx.Done():
		// the reader goroutine still owns the scanner; only a dead process frees it
		c.shutdown()
		return response, ctx.Err()
	}
}

func (c *StdioClient) logStderr() {
	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		c.logger.Warn("MCP server stderr", "server", c.name, "message", scanner.Text())
	}
}
