package workflow

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vk/flowdash/internal/clock"
)

// Rand is the random source used for synthetic metrics. *rand.Rand from
// math/rand/v2 satisfies it; tests pass a seeded one.
type Rand interface {
	Float64() float64
}

// Bounds for the synthetic metrics generated on completion.
const (
	MinDurationMS  = 1000.0
	DurationSpread = 5000.0
	MinMemoryMB    = 50.0
	MemorySpread   = 100.0
)

// Store owns the workflow graph and its mutable state.
type Store struct {
	mu        sync.RWMutex
	nodes     []Node
	index     map[string]int
	edges     []Edge
	selected  string
	connected bool

	clock  clock.Clock
	rand   Rand
	logger *slog.Logger

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	// version counts committed changes; guarded by mu.
	version     uint64
	dispatchMu  sync.Mutex
	queue       []Event
	dispatching bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for lastUpdated stamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithRand sets the random source for synthetic metrics.
func WithRand(r Rand) Option {
	return func(s *Store) { s.rand = r }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store seeded with g. The graph is taken as is; callers
// that load topology from user input validate it first.
func NewStore(g Graph, opts ...Option) *Store {
	s := &Store{
		clock:  clock.New(),
		logger: slog.Default(),
		subs:   make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.logger = s.logger.With("component", "workflow_store")

	s.nodes, s.index = cloneNodes(g.Nodes, s.clock.Now())
	s.edges = cloneEdges(g.Edges)
	return s
}

// UpdateNodeStatus sets the status of the node with the given id, stamps
// lastUpdated and, when logMessage is non-empty, replaces the log message.
// Entering StatusCompleted draws fresh metrics; any other status leaves the
// previous metrics as they were. An unknown id is a silent no-op.
//
// It returns the updated node and whether the id was found.
func (s *Store) UpdateNodeStatus(id string, status Status, logMessage string) (Node, bool) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("Status update for unknown node ignored.", "node_id", id, "status", status)
		return Node{}, false
	}

	updated := s.nodes[i]
	updated.Status = status
	updated.LastUpdated = s.clock.Now()
	if logMessage != "" {
		updated.LogMessage = logMessage
	}
	if status == StatusCompleted {
		updated.Metrics = &Metrics{
			DurationMS: s.rand.Float64()*DurationSpread + MinDurationMS,
			MemoryMB:   s.rand.Float64()*MemorySpread + MinMemoryMB,
		}
	}

	next := make([]Node, len(s.nodes))
	copy(next, s.nodes)
	next[i] = updated
	s.nodes = next
	s.enqueueLocked(Event{Kind: EventNodeUpdated, Node: &updated})
	s.mu.Unlock()

	s.logger.Debug("Node status updated.", "node_id", id, "status", status, "log_message", updated.LogMessage)
	s.dispatch()
	return updated, true
}

// SetNodePosition moves a node on the canvas. An unknown id is ignored.
func (s *Store) SetNodePosition(id string, pos Position) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	updated := s.nodes[i]
	updated.Position = pos
	next := make([]Node, len(s.nodes))
	copy(next, s.nodes)
	next[i] = updated
	s.nodes = next
	s.enqueueLocked(Event{Kind: EventNodeUpdated, Node: &updated})
	s.mu.Unlock()

	s.dispatch()
	return true
}

// SetSelectedNode replaces the selection. A nil node clears it. The store
// keeps a reference by id, so Selected always reflects the latest state.
func (s *Store) SetSelectedNode(n *Node) {
	id := ""
	if n != nil {
		id = n.ID
	}
	s.mu.Lock()
	s.selected = id
	s.enqueueLocked(Event{Kind: EventSelectionChanged, SelectedID: id})
	s.mu.Unlock()

	s.dispatch()
}

// Selected resolves the current selection against the graph.
func (s *Store) Selected() (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return Node{}, false
	}
	i, ok := s.index[s.selected]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// SetNodes replaces the node collection. A selection pointing at a node that
// no longer exists is dropped.
func (s *Store) SetNodes(nodes []Node) {
	s.mu.Lock()
	s.nodes, s.index = cloneNodes(nodes, s.clock.Now())
	if _, ok := s.index[s.selected]; !ok {
		s.selected = ""
	}
	s.enqueueLocked(Event{Kind: EventGraphReplaced})
	s.mu.Unlock()

	s.dispatch()
}

// SetEdges replaces the edge collection.
func (s *Store) SetEdges(edges []Edge) {
	s.mu.Lock()
	s.edges = cloneEdges(edges)
	s.enqueueLocked(Event{Kind: EventGraphReplaced})
	s.mu.Unlock()

	s.dispatch()
}

// SetConnected records the connectivity flag shown to viewers.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.enqueueLocked(Event{Kind: EventConnectionChanged, Connected: connected})
	s.mu.Unlock()

	if changed {
		s.logger.Info("Connectivity changed.", "connected", connected)
	}
	s.dispatch()
}

// Connected returns the connectivity flag.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Node looks up a node by id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// NodeForSequence returns the node at seq modulo the node count, or false
// when the graph is empty.
func (s *Store) NodeForSequence(seq uint64) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.nodes) == 0 {
		return Node{}, false
	}
	return s.nodes[seq%uint64(len(s.nodes))], true
}

// Nodes returns the current node sequence. The slice must not be modified.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes
}

// Edges returns a copy of the edge collection.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEdges(s.edges)
}

// Snapshot is a consistent, read-only view of the store.
type Snapshot struct {
	Nodes          []Node `json:"nodes"`
	Edges          []Edge `json:"edges"`
	SelectedNodeID string `json:"selectedNodeId,omitempty"`
	Connected      bool   `json:"isConnected"`
}

// Snapshot captures the whole store under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]Node, len(s.nodes))
	copy(nodes, s.nodes)
	return Snapshot{
		Nodes:          nodes,
		Edges:          cloneEdges(s.edges),
		SelectedNodeID: s.selected,
		Connected:      s.connected,
	}
}

// Stats summarises the graph for the view's header panel.
type Stats struct {
	NodeCount int            `json:"nodeCount"`
	EdgeCount int            `json:"edgeCount"`
	ByStatus  map[Status]int `json:"byStatus"`
}

// Stats counts nodes per status.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		NodeCount: len(s.nodes),
		EdgeCount: len(s.edges),
		ByStatus:  make(map[Status]int, len(Statuses)),
	}
	for _, status := range Statuses {
		st.ByStatus[status] = 0
	}
	for _, n := range s.nodes {
		st.ByStatus[n.Status]++
	}
	return st
}

// cloneNodes copies in, defaulting empty statuses to idle and zero
// timestamps to now.
func cloneNodes(in []Node, now time.Time) ([]Node, map[string]int) {
	nodes := make([]Node, len(in))
	copy(nodes, in)
	index := make(map[string]int, len(nodes))
	for i := range nodes {
		if nodes[i].Status == "" {
			nodes[i].Status = StatusIdle
		}
		if nodes[i].LastUpdated.IsZero() {
			nodes[i].LastUpdated = now
		}
		index[nodes[i].ID] = i
	}
	return nodes, index
}

func cloneEdges(in []Edge) []Edge {
	edges := make([]Edge, len(in))
	copy(edges, in)
	return edges
}
