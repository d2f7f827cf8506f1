package responder

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented records a span, a duration histogram and an outcome counter
// around every reply.
type Instrumented struct {
	next     Responder
	name     string
	tracer   trace.Tracer
	replies  metric.Int64Counter
	duration metric.Float64Histogram
	logger   *slog.Logger
}

// NewInstrumented wraps next. name labels the backend in spans and metrics.
func NewInstrumented(next Responder, name string, tracer trace.Tracer, meter metric.Meter, logger *slog.Logger) (*Instrumented, error) {
	if logger == nil {
		logger = slog.Default()
	}
	replies, err := meter.Int64Counter(
		"ragchat.replies",
		metric.WithDescription("Assistant replies by outcome"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"ragchat.reply.duration",
		metric.WithDescription("Reply generation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &Instrumented{
		next:     next,
		name:     name,
		tracer:   tracer,
		replies:  replies,
		duration: duration,
		logger:   logger.With("component", "responder", "backend", name),
	}, nil
}

func (i *Instrumented) GenerateReply(ctx context.Context, req Request) (string, error) {
	ctx, span := i.tracer.Start(ctx, "responder.generate_reply",
		trace.WithAttributes(
			attribute.String("responder.backend", i.name),
			attribute.String("conversation.id", req.ConversationID),
			attribute.String("conversation.scope", scopeLabel(req)),
		),
	)
	defer span.End()

	start := time.Now()
	reply, err := i.next.GenerateReply(ctx, req)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err == nil:
	case ctx.Err() == context.DeadlineExceeded:
		outcome = "timeout"
	case ctx.Err() == context.Canceled:
		outcome = "canceled"
	default:
		outcome = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("backend", i.name),
		attribute.String("outcome", outcome),
	)
	i.replies.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Warn("reply failed", "conversation_id", req.ConversationID, "outcome", outcome, "error", err)
		return "", err
	}

	span.SetAttributes(attribute.Int("reply.length", len(reply)))
	i.logger.Info("reply generated", "conversation_id", req.ConversationID, "duration_ms", elapsed.Milliseconds())
	return reply, nil
}

func scopeLabel(req Request) string {
	if req.Scope == nil {
		return "bare"
	}
	return req.Scope.String()
}
