package metrics

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vk/flowdash/internal/clock"
)

// Source fetches a single reading.
type Source interface {
	Fetch(ctx context.Context) (SystemMetrics, error)
}

// Rand is the random source behind simulated readings.
type Rand interface {
	Float64() float64
}

// DefaultFetchLatency is the delay a simulated fetch adds.
const DefaultFetchLatency = 300 * time.Millisecond

// Simulated produces plausible random readings after a short delay.
type Simulated struct {
	mu      sync.Mutex
	rand    Rand
	clock   clock.Clock
	latency time.Duration
}

// SimulatedOption configures a Simulated source.
type SimulatedOption func(*Simulated)

// WithRand sets the random source.
func WithRand(r Rand) SimulatedOption {
	return func(s *Simulated) { s.rand = r }
}

// WithSourceClock sets the clock used to stamp readings.
func WithSourceClock(c clock.Clock) SimulatedOption {
	return func(s *Simulated) { s.clock = c }
}

// WithFetchLatency overrides DefaultFetchLatency. Zero disables the delay.
func WithFetchLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.latency = d }
}

// NewSimulated creates a simulated source.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{clock: clock.New(), latency: DefaultFetchLatency}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Fetch implements Source. Ranges: cpu [40,70), memory [60,80), latency
// [20,70) ms, jobs [5000,5999], active workflows [5,14].
func (s *Simulated) Fetch(ctx context.Context) (SystemMetrics, error) {
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return SystemMetrics{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return SystemMetrics{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return SystemMetrics{
		CPU:             s.rand.Float64()*30 + 40,
		Memory:          s.rand.Float64()*20 + 60,
		Latency:         s.rand.Float64()*50 + 20,
		JobsProcessed:   int(s.rand.Float64()*1000) + 5000,
		ActiveWorkflows: int(s.rand.Float64()*10) + 5,
		Timestamp:       s.clock.Now(),
	}, nil
}
