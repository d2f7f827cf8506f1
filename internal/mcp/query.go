package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"RagChat/internal/responder"
	"RagChat/internal/session"
)

// DefaultQueryTool is the tool asked to answer questions from documents
const DefaultQueryTool = "query_documents"

// ErrEmptyAnswer is returned when the query tool produced no text
var ErrEmptyAnswer = errors.New("query tool returned no text")

// QueryResponder answers by calling a document query tool. Arguments are
// question, conversation_id and, for scoped conversations, tenant and entity.
type QueryResponder struct {
	registry *ClientRegistry
	tool     string
	logger   *slog.Logger
}

var _ responder.Responder = (*QueryResponder)(nil)

// NewQueryResponder answers through whichever registered server lists tool
func NewQueryResponder(registry *ClientRegistry, tool string, logger *slog.Logger) *QueryResponder {
	if tool == "" {
		tool = DefaultQueryTool
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryResponder{
		registry: registry,
		tool:     tool,
		logger:   logger.With("component", "mcp_query", "tool", tool),
	}
}

func (q *QueryResponder) GenerateReply(ctx context.Context, req responder.Request) (string, error) {
	client, err := q.registry.ClientFor(q.tool)
	if err != nil {
		return "", err
	}

	result, err := client.CallTool(ctx, q.tool, QueryArguments(req))
	if err != nil {
		return "", err
	}

	text := resultText(result)
	if result.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "", fmt.Errorf("tool %s failed: %s", q.tool, text)
	}
	if text == "" {
		return "", ErrEmptyAnswer
	}

	q.logger.Info("answered from documents", "conversation_id", req.ConversationID, "server", client.Name())
	return text, nil
}

// QueryArguments builds the tool arguments for req
func QueryArguments(req responder.Request) map[string]interface{} {
	args := map[string]interface{}{
		"question":        req.Text,
		"conversation_id": req.ConversationID,
	}
	if s, ok := req.Scope.(session.Scoped); ok {
		args["tenant"] = s.Tenant
		args["entity"] = s.Entity
	}
	return args
}

func resultText(result *CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
