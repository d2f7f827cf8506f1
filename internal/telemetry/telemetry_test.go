package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesJSONFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := InitLogger(dir, slog.LevelInfo)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("created conversation", "conversation_id", "c1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "ragchat.log"))
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry), "exactly one JSON line expected")
	assert.Equal(t, "created conversation", entry["msg"])
	assert.Equal(t, "c1", entry["conversation_id"])
}

func TestInitTelemetry_Disabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "otel")
	tracer, meter, cleanup, err := InitTelemetry(context.Background(), Options{Dir: dir})
	require.NoError(t, err)
	defer cleanup()

	_, span := tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	counter, err := meter.Int64Counter("ragchat.replies")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "disabled telemetry writes nothing")
}

func TestInitTelemetry_Enabled(t *testing.T) {
	dir := t.TempDir()
	tracer, meter, cleanup, err := InitTelemetry(context.Background(), Options{Enabled: true, Dir: dir})
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "responder.generate_reply")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	counter, err := meter.Int64Counter("ragchat.messages")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	cleanup()

	traces, err := os.ReadFile(filepath.Join(dir, "ragchat_traces.log"))
	require.NoError(t, err)
	assert.Contains(t, string(traces), "responder.generate_reply")

	metrics, err := os.ReadFile(filepath.Join(dir, "ragchat_metrics.log"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "ragchat.messages")
}
