// Package backend answers chat requests through hosted or local
// chat-completion APIs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"RagChat/internal/responder"
	"RagChat/internal/session"
)

// ChatMessage is the role/content pair shared by every provider
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a responder backed by a chat-completion API
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	duration   metric.Float64Histogram
}

var _ responder.Responder = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetry records provider spans and usage metrics
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
		if meter != nil {
			c.meter = meter
		}
	}
}

// NewClient creates a client for the provider named in settings
func NewClient(settings Settings, opts ...Option) (*Client, error) {
	settings, err := settings.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		tracer:     tracenoop.NewTracerProvider().Tracer(""),
		meter:      metricnoop.NewMeterProvider().Meter(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.settings.BaseURL = strings.TrimRight(c.settings.BaseURL, "/")
	c.logger = c.logger.With("component", "backend", "provider", settings.Provider)

	c.duration, err = c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return c, nil
}

// Provider returns the provider name
func (c *Client) Provider() string {
	return c.settings.Provider
}

// Model returns the model requests are sent to
func (c *Client) Model() string {
	return c.settings.Model
}

// GenerateReply sends the conversation history to the provider
func (c *Client) GenerateReply(ctx context.Context, req responder.Request) (string, error) {
	ctx, span := c.tracer.Start(ctx, c.settings.Provider+"_api_call",
		trace.WithAttributes(attribute.String("llm.model", c.settings.Model)),
	)
	defer span.End()

	system := SystemPrompt(req.Scope)
	messages := ChatMessages(req.Messages())

	switch c.settings.Provider {
	case ProviderOllama:
		return c.callOllama(ctx, system, messages)
	case ProviderAnthropic:
		return c.callAnthropic(ctx, system, messages)
	case ProviderGrok, ProviderOpenAI:
		return c.callOpenAI(ctx, system, messages)
	default:
		return "", fmt.Errorf("unknown provider: %s", c.settings.Provider)
	}
}

// SystemPrompt tells the model which tenant and entity a scoped
// conversation is about. Bare conversations get no system prompt.
func SystemPrompt(scope session.Scope) string {
	s, ok := scope.(session.Scoped)
	if !ok {
		return ""
	}
	return fmt.Sprintf("You answer questions using the documents of tenant %q, entity %q. "+
		"If the documents do not cover the question, say so.", s.Tenant, s.Entity)
}

// ChatMessages converts history to provider messages. Error notices are
// local to the UI and never sent back.
func ChatMessages(history []session.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Kind == session.KindError {
			continue
		}
		out = append(out, ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

func (c *Client) postJSON(ctx context.Context, path string, headers map[string]string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, headers, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, body, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.settings.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("provider", c.settings.Provider),
			attribute.Int("status", resp.StatusCode),
		),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// recordUsage records OpenTelemetry counters from provider usage data
func (c *Client) recordUsage(ctx context.Context, usage map[string]interface{}) {
	for key, value := range usage {
		intVal, ok := value.(float64)
		if !ok {
			continue
		}
		counter, err := c.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			c.logger.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, int64(intVal), metric.WithAttributes(attribute.String("provider", c.settings.Provider)))
	}
}
