package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestNewTagsService(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo).Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "image-vault", lines[0]["service"])
	assert.NotContains(t, lines[0], "source")
}

func TestStartSpanNestsUnderTrace(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, slog.LevelDebug))

	ctx, parent := StartSpan(ctx, "upload")
	traceID := TraceIDFromContext(ctx)
	parentID := SpanIDFromContext(ctx)
	require.NotEmpty(t, traceID)

	childCtx, child := StartSpan(ctx, "store")
	assert.Equal(t, traceID, TraceIDFromContext(childCtx))
	assert.NotEqual(t, parentID, SpanIDFromContext(childCtx))

	child.SetAttributes("path", "u1/photo.jpg")
	child.End()
	parent.End()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "span completed", lines[0]["msg"])
	assert.Equal(t, "store", lines[0]["span_name"])
	assert.Equal(t, parentID, lines[0]["parent_span_id"])
	assert.Equal(t, "u1/photo.jpg", lines[0]["path"])
	assert.Equal(t, traceID, lines[1]["trace_id"])
}

func TestSpanRecordErrorLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, slog.LevelInfo))

	_, span := StartSpan(ctx, "gallery.load_page")
	span.RecordError(errors.New("db down"))
	span.End()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "db down", lines[0]["error"])
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span
	span.SetAttributes("k", "v")
	span.RecordError(errors.New("x"))
	span.End()
}

func TestFirstSpanUsesRequestIDAsTrace(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	ctx, span := StartSpan(ctx, "gallery.load_page")
	defer span.End()

	assert.Equal(t, "req-123", TraceIDFromContext(ctx))
}

func TestWithUserIDTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, slog.LevelInfo))

	ctx = WithUserID(ctx, "u1")
	assert.Equal(t, "u1", UserIDFromContext(ctx))
	FromContext(ctx).Info("uploaded")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "u1", lines[0]["user_id"])

	assert.Equal(t, ctx, WithUserID(ctx, ""))
	assert.Empty(t, UserIDFromContext(context.Background()))
}
