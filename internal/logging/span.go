package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span is a timed unit of work inside a request, such as one upload or one
// gallery page load.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	attrs  []any
	err    error
}

// StartSpan derives a child span from ctx. The returned context carries a
// logger tagged with the trace and span identifiers.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		// The first span of a request is traced under the request id.
		traceID = RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// SetAttributes adds key/value pairs to the completion entry.
func (s *Span) SetAttributes(args ...any) {
	if s == nil {
		return
	}
	s.attrs = append(s.attrs, args...)
}

// RecordError marks the span failed. The last error wins.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion entry: debug on success, warn when an error was
// recorded.
func (s *Span) End() {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", time.Since(s.start))}, s.attrs...)
	if s.err != nil {
		s.logger.Warn("span failed", append(args, slog.String("error", s.err.Error()))...)
		return
	}
	s.logger.Debug("span completed", args...)
}
