package metrics

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Tracer is the tracing facade used across the simulator. The OpenTelemetry
// adapter (build tag "otel") and the in-memory SimpleTracer both satisfy it.
type Tracer interface {
	// StartSpan starts a span. The returned SpanEnder must be called exactly
	// once; pass nil for success or the failing error.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder ends a span, recording err when non-nil.
type SpanEnder func(err error)

// SpanOption configures span behavior.
type SpanOption func(*spanConfig)

type spanConfig struct {
	attributes map[string]interface{}
}

// WithAttributes sets span attributes.
func WithAttributes(attrs map[string]interface{}) SpanOption {
	return func(c *spanConfig) { c.attributes = attrs }
}

// NoOpTracer discards all spans. The default when tracing is not configured.
type NoOpTracer struct{}

// StartSpan returns the context unchanged and a no-op end function.
func (NoOpTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// RecordedSpan is a completed span captured by SimpleTracer.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Attributes map[string]interface{}
	Error      error
	TraceID    string
	SpanID     string
	ParentID   string
}

// SimpleTracer records spans in memory. Used by tests and the bench command.
type SimpleTracer struct {
	mu    sync.Mutex
	spans []RecordedSpan
}

// NewSimpleTracer creates an empty SimpleTracer.
func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

type spanContextKey struct{}

type activeSpan struct {
	TraceID string
	SpanID  string
}

// StartSpan starts an in-memory span, threading parentage through ctx.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := &spanConfig{attributes: make(map[string]interface{})}
	for _, opt := range opts {
		opt(cfg)
	}

	span := RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: cfg.attributes,
		TraceID:    randomID(),
		SpanID:     randomID(),
	}
	if parent, ok := ctx.Value(spanContextKey{}).(activeSpan); ok {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}

	ctx = context.WithValue(ctx, spanContextKey{}, activeSpan{TraceID: span.TraceID, SpanID: span.SpanID})

	return ctx, func(err error) {
		span.EndTime = time.Now()
		span.Duration = span.EndTime.Sub(span.StartTime)
		span.Error = err
		t.mu.Lock()
		t.spans = append(t.spans, span)
		t.mu.Unlock()
	}
}

// Spans returns a copy of all recorded spans.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedSpan, len(t.spans))
	copy(out, t.spans)
	return out
}

// Reset discards recorded spans.
func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = nil
}

func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
