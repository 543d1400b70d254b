// Package telemetry records view, user-action and performance events. An
// Emitter stamps each event and fans it out to its sinks: the structured
// log, an OpenTelemetry tracer, or an in-memory recorder.
package telemetry

import (
	"context"
	"time"

	"github.com/vk/flowdash/internal/clock"
)

// Type classifies an event.
type Type string

const (
	TypeView        Type = "view"
	TypeUserAction  Type = "user_action"
	TypePerformance Type = "performance"
)

// Event is one telemetry record.
type Event struct {
	Type      Type           `json:"type"`
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Sink receives stamped events.
type Sink interface {
	Record(ctx context.Context, evt Event)
}

// Emitter stamps events and forwards them to every sink.
type Emitter struct {
	sinks []Sink
	clock clock.Clock
}

// NewEmitter creates an emitter. A nil clock uses wall time.
func NewEmitter(c clock.Clock, sinks ...Sink) *Emitter {
	if c == nil {
		c = clock.New()
	}
	return &Emitter{sinks: sinks, clock: c}
}

// Emit records evt. A zero timestamp is set to now (UTC) and nil metadata
// becomes an empty map. It is a no-op on a nil emitter.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if e == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.clock.Now().UTC()
	}
	if evt.Metadata == nil {
		evt.Metadata = map[string]any{}
	}
	for _, s := range e.sinks {
		s.Record(ctx, evt)
	}
}

// View records that a screen was shown.
func (e *Emitter) View(ctx context.Context, action string, metadata map[string]any) {
	e.Emit(ctx, Event{Type: TypeView, Action: action, Metadata: metadata})
}

// UserAction records something a user did.
func (e *Emitter) UserAction(ctx context.Context, action string, details map[string]any) {
	e.Emit(ctx, Event{Type: TypeUserAction, Action: action, Metadata: details})
}

// Performance records a measurement. An empty unit defaults to "ms".
func (e *Emitter) Performance(ctx context.Context, metric string, value float64, unit string) {
	if unit == "" {
		unit = "ms"
	}
	e.Emit(ctx, Event{
		Type:     TypePerformance,
		Action:   metric,
		Metadata: map[string]any{"value": value, "unit": unit},
	})
}
