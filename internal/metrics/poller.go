package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/flowdash/internal/clock"
	"golang.org/x/sync/singleflight"
)

// State is the poller's fetch state.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

const (
	DefaultInterval   = 3 * time.Second
	DefaultStaleAfter = 2 * time.Second
)

// Reading is what the poller currently holds. Metrics is nil until the first
// successful fetch; a failed refresh keeps the previous value.
type Reading struct {
	State     State          `json:"state"`
	Metrics   *SystemMetrics `json:"metrics,omitempty"`
	Health    Health         `json:"health,omitempty"`
	Latency   LatencyRating  `json:"latencyRating,omitempty"`
	Error     string         `json:"error,omitempty"`
	FetchedAt time.Time      `json:"fetchedAt,omitzero"`
}

// Poller refreshes metrics from a Source.
type Poller struct {
	source     Source
	interval   time.Duration
	staleAfter time.Duration
	clock      clock.Clock
	logger     *slog.Logger
	flight     singleflight.Group

	mu        sync.RWMutex
	state     State
	last      *SystemMetrics
	lastErr   error
	fetchedAt time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the refresh cadence.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithStaleAfter sets how long a reading is served from cache.
func WithStaleAfter(d time.Duration) PollerOption {
	return func(p *Poller) { p.staleAfter = d }
}

// WithClock sets the poller's clock.
func WithClock(c clock.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the poller's logger.
func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a poller in the loading state.
func NewPoller(source Source, opts ...PollerOption) (*Poller, error) {
	if source == nil {
		return nil, fmt.Errorf("metrics source cannot be nil")
	}
	p := &Poller{
		source:     source,
		interval:   DefaultInterval,
		staleAfter: DefaultStaleAfter,
		clock:      clock.New(),
		logger:     slog.Default(),
		state:      StateLoading,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		return nil, fmt.Errorf("metrics interval must be positive, got %s", p.interval)
	}
	if p.staleAfter < 0 {
		return nil, fmt.Errorf("metrics stale time cannot be negative, got %s", p.staleAfter)
	}
	p.logger = p.logger.With("component", "metrics_poller")
	return p, nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Metrics poller started.", "interval", p.interval)
	defer p.logger.Info("Metrics poller stopped.")

	_ = p.Refresh(ctx)
	tick := make(chan struct{}, 1)
	for {
		t := p.clock.AfterFunc(p.interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-tick:
			_ = p.Refresh(ctx)
		}
	}
}

// Refresh fetches a new reading. Concurrent callers share one fetch.
func (p *Poller) Refresh(ctx context.Context) error {
	_, err, _ := p.flight.Do("fetch", func() (any, error) {
		m, err := p.source.Fetch(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.state = StateFailed
			p.lastErr = err
			p.logger.Warn("Metrics fetch failed.", "error", err)
			return nil, err
		}
		p.state = StateReady
		p.last = &m
		p.lastErr = nil
		p.fetchedAt = p.clock.Now()
		p.logger.Debug("Metrics refreshed.", "cpu", m.CPU, "memory", m.Memory, "latency", m.Latency)
		return nil, nil
	})
	return err
}

// Get returns the current reading, refreshing first when the cached one is
// older than the stale time or missing.
func (p *Poller) Get(ctx context.Context) Reading {
	p.mu.RLock()
	fresh := p.last != nil && p.clock.Now().Sub(p.fetchedAt) < p.staleAfter
	p.mu.RUnlock()

	if !fresh {
		_ = p.Refresh(ctx)
	}
	return p.Snapshot()
}

// Snapshot returns the current reading without fetching.
func (p *Poller) Snapshot() Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()

	r := Reading{State: p.state, FetchedAt: p.fetchedAt}
	if p.last != nil {
		m := *p.last
		r.Metrics = &m
		r.Health = m.Health()
		r.Latency = m.LatencyRating()
	}
	if p.lastErr != nil {
		r.Error = p.lastErr.Error()
	}
	return r
}
