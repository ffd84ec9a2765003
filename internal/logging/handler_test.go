// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "checkmate", Version: "1.0.0", Writer: &buf})
	require.NoError(t, err)

	logger.Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "checkmate", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "checkmate", Format: "text", Writer: &buf})
	require.NoError(t, err)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=checkmate")
}

func TestSetup_InvalidOptions(t *testing.T) {
	_, err := Setup(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_INVALID_FORMAT")

	_, err = Setup(Options{Level: "verbose"})
	errutil.AssertErrorCode(t, err, "LOG_INVALID_LEVEL")
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "checkmate", Writer: &buf})
	require.NoError(t, err)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Writer: &buf})
	require.NoError(t, err)

	logger.Info("untraced")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
	assert.NotContains(t, entry, "request_id")
}

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Writer: &buf})
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "01HZX3J5W6QK2V7Y8N9P0R1S2T")
	assert.Equal(t, "01HZX3J5W6QK2V7Y8N9P0R1S2T", RequestID(ctx))

	logger.InfoContext(ctx, "request")

	entry := decode(t, &buf)
	assert.Equal(t, "01HZX3J5W6QK2V7Y8N9P0R1S2T", entry["request_id"])
}

func TestHandler_RedactsSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Writer: &buf})
	require.NoError(t, err)

	logger.With("Authorization", "Bearer abcdef").
		WithGroup("req").
		Info("credentials",
			"password", "hunter2",
			"token", "deadbeef",
			"username", "jozin",
		)

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "deadbeef")
	assert.NotContains(t, out, "abcdef")
	assert.Contains(t, out, "jozin")
	assert.Contains(t, out, Redacted)
}

func TestHandler_WithAttrsKeepsIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "checkmate", Version: "2.0.0", Writer: &buf})
	require.NoError(t, err)

	logger.With("component", "api").Info("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "api", entry["component"])
	assert.Equal(t, "checkmate", entry["service"])
	assert.Equal(t, "2.0.0", entry["version"])
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger, err := SetDefault(Options{Service: "checkmate", Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())
}
