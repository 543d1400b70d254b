package simulator

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/vk/flowdash/internal/clock"
	"github.com/vk/flowdash/internal/workflow"
)

// Config tunes the schedule and the failure probability.
type Config struct {
	Interval    time.Duration `json:"interval"`
	JitterMin   time.Duration `json:"jitterMin"`
	JitterMax   time.Duration `json:"jitterMax"`
	FailureRate float64       `json:"failureRate"`
}

// DefaultConfig matches the classic feed: a tick every 3s, each applied
// 2-4s later, with one in ten completions failing.
func DefaultConfig() Config {
	return Config{
		Interval:    3 * time.Second,
		JitterMin:   2 * time.Second,
		JitterMax:   4 * time.Second,
		FailureRate: 0.1,
	}
}

// Validate checks the schedule is usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("simulator interval must be positive, got %s", c.Interval)
	}
	if c.JitterMin < 0 || c.JitterMax < c.JitterMin {
		return fmt.Errorf("simulator jitter range [%s, %s] is invalid", c.JitterMin, c.JitterMax)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("simulator failure rate must be within [0, 1], got %v", c.FailureRate)
	}
	return nil
}

// Target is the part of the workflow store the simulator drives.
type Target interface {
	NodeForSequence(seq uint64) (workflow.Node, bool)
	UpdateNodeStatus(id string, status workflow.Status, logMessage string) (workflow.Node, bool)
	SetConnected(connected bool)
}

// Simulator advances node status on a timer.
type Simulator struct {
	// applyMu keeps effects from overlapping; it is taken before mu.
	applyMu sync.Mutex

	mu     sync.Mutex
	target Target
	cfg    Config
	clock  clock.Clock
	rand   workflow.Rand
	logger *slog.Logger

	seq     uint64
	running bool
	// gen invalidates callbacks scheduled by an earlier Start.
	gen       uint64
	outer     clock.Timer
	pending   map[uint64]clock.Timer
	nextTimer uint64
	// writing counts store writes in progress outside mu; idle is signalled
	// when it drops to zero.
	writing int
	idle    *sync.Cond
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the clock used for scheduling.
func WithClock(c clock.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithRand sets the random source for jitter and failures.
func WithRand(r workflow.Rand) Option {
	return func(s *Simulator) { s.rand = r }
}

// WithLogger sets the simulator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// New creates a stopped simulator driving target.
func New(target Target, cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		target:  target,
		cfg:     cfg,
		clock:   clock.New(),
		logger:  slog.Default(),
		pending: make(map[uint64]clock.Timer),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.logger = s.logger.With("component", "simulator")
	return s
}

// Start arms the outer timer and marks the feed connected. Calling Start on
// a running simulator does nothing.
func (s *Simulator) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.outer = s.clock.AfterFunc(s.cfg.Interval, func() { s.tick(gen) })
	s.mu.Unlock()

	s.logger.Info("Simulator started.", "interval", s.cfg.Interval, "jitter_min", s.cfg.JitterMin, "jitter_max", s.cfg.JitterMax)
	s.target.SetConnected(true)
}

// Stop cancels every outstanding timer, waits for a transition already being
// written, and marks the feed disconnected. Calling Stop on a stopped
// simulator does nothing. A store subscriber must not call Stop while it is
// handling a simulated transition on the simulator's own goroutine.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.outer != nil {
		s.outer.Stop()
		s.outer = nil
	}
	cancelled := len(s.pending)
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	for s.writing > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()

	s.logger.Info("Simulator stopped.", "cancelled_effects", cancelled)
	s.target.SetConnected(false)
}

// Running reports whether the simulator is started.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pending returns the number of scheduled effects that have not fired yet.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Sequence returns the number of effects applied so far.
func (s *Simulator) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// tick runs on the outer timer: it schedules one jittered effect and re-arms
// itself.
func (s *Simulator) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.gen {
		return
	}

	delay := s.jitterLocked()
	id := s.nextTimer
	s.nextTimer++
	s.pending[id] = s.clock.AfterFunc(delay, func() { s.apply(gen, id) })
	s.outer = s.clock.AfterFunc(s.cfg.Interval, func() { s.tick(gen) })
}

// apply runs on a jitter timer and performs one transition. The transition
// is computed under the simulator lock and written to the store after it is
// released, so store subscribers may call back into the simulator. Stop
// waits for the write to finish before it returns.
func (s *Simulator) apply(gen, id uint64) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)

	seq := s.seq
	s.seq++

	node, ok := s.target.NodeForSequence(seq)
	if !ok {
		s.mu.Unlock()
		return
	}
	status, msg := Next(node, s.rand, s.cfg.FailureRate)
	s.writing++
	s.mu.Unlock()

	s.target.UpdateNodeStatus(node.ID, status, msg)
	s.logger.Debug("Simulated transition.", "seq", seq, "node_id", node.ID, "from", node.Status, "to", status)

	s.mu.Lock()
	s.writing--
	if s.writing == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Simulator) jitterLocked() time.Duration {
	spread := s.cfg.JitterMax - s.cfg.JitterMin
	if spread <= 0 {
		return s.cfg.JitterMin
	}
	return s.cfg.JitterMin + time.Duration(s.rand.Float64()*float64(spread))
}

// Next computes the transition for n. Only a completed node consumes a draw
// from r.
func Next(n workflow.Node, r workflow.Rand, failureRate float64) (workflow.Status, string) {
	switch n.Status {
	case workflow.StatusIdle:
		return workflow.StatusRunning, fmt.Sprintf("Processing %s...", strings.ToLower(n.Label))
	case workflow.StatusRunning:
		return workflow.StatusCompleted, fmt.Sprintf("%s completed successfully", n.Label)
	case workflow.StatusCompleted:
		if r.Float64() < failureRate {
			return workflow.StatusFailed, fmt.Sprintf("Error: Failed to process %s", n.Label)
		}
		return workflow.StatusIdle, "Ready for next execution"
	case workflow.StatusFailed:
		return workflow.StatusIdle, "Reset after failure"
	}
	// Unknown statuses restart the cycle.
	return workflow.StatusIdle, "Node initialized"
}
