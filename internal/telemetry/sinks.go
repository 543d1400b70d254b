package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "telemetry")}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, evt Event) {
	args := make([]any, 0, len(evt.Metadata)*2)
	for _, k := range slices.Sorted(maps.Keys(evt.Metadata)) {
		args = append(args, k, evt.Metadata[k])
	}
	s.logger.InfoContext(ctx, "Telemetry event.",
		"type", evt.Type,
		"action", evt.Action,
		"timestamp", evt.Timestamp,
		slog.Group("metadata", args...),
	)
}

// TraceSink turns each event into a zero-length span.
type TraceSink struct {
	tracer trace.Tracer
}

// NewTraceSink creates a sink on tp.
func NewTraceSink(tp trace.TracerProvider) *TraceSink {
	return &TraceSink{tracer: tp.Tracer("github.com/vk/flowdash/internal/telemetry")}
}

// Record implements Sink.
func (s *TraceSink) Record(ctx context.Context, evt Event) {
	attrs := make([]attribute.KeyValue, 0, len(evt.Metadata)+1)
	attrs = append(attrs, attribute.String("telemetry.type", string(evt.Type)))
	for _, k := range slices.Sorted(maps.Keys(evt.Metadata)) {
		attrs = append(attrs, toAttribute("telemetry.metadata."+k, evt.Metadata[k]))
	}

	_, span := s.tracer.Start(ctx, string(evt.Type)+" "+evt.Action,
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(evt.Timestamp))
}

func toAttribute(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case fmt.Stringer:
		return attribute.String(key, val.String())
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Sink.
func (r *Recorder) Record(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}
