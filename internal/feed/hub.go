// Package feed pushes workflow changes to live viewers over socket.io.
//
// # Viewer Presence
//
// The simulator only runs while someone is watching: the first viewer to
// connect starts it and the last one to leave stops it. With AlwaysOn the
// simulator runs for the lifetime of the hub instead.
//
// # Events
//
//	snapshot    full graph, sent to each viewer on connect and to all viewers
//	            when the topology is replaced
//	node:update one node after a status or position change
//	selection   the selected node id, or "" when cleared
//	connection  the live-feed connectivity flag
package feed

import (
	"log/slog"
	"sync"

	"github.com/vk/flowdash/internal/workflow"
)

// Event names on the wire.
const (
	EventSnapshot   = "snapshot"
	EventNodeUpdate = "node:update"
	EventSelection  = "selection"
	EventConnection = "connection"
)

// ConnectionPayload is the body of a connection event.
type ConnectionPayload struct {
	Connected bool `json:"isConnected"`
}

// SelectionPayload is the body of a selection event.
type SelectionPayload struct {
	SelectedNodeID string `json:"selectedNodeId"`
}

// Broadcaster delivers an event to every connected viewer.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Lifecycle is the part of the simulator the hub controls.
type Lifecycle interface {
	Start()
	Stop()
}

// Hub ties store changes and viewer presence together.
type Hub struct {
	store    *workflow.Store
	sim      Lifecycle
	out      Broadcaster
	alwaysOn bool
	logger   *slog.Logger

	mu          sync.Mutex
	viewers     int
	unsubscribe func()
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// AlwaysOn keeps the simulator running regardless of viewers.
func AlwaysOn(on bool) HubOption {
	return func(h *Hub) { h.alwaysOn = on }
}

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a hub. Call Open before accepting viewers.
func NewHub(store *workflow.Store, sim Lifecycle, out Broadcaster, opts ...HubOption) *Hub {
	h := &Hub{store: store, sim: sim, out: out, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "feed_hub")
	return h
}

// Open subscribes to the store and, with AlwaysOn, starts the simulator.
func (h *Hub) Open() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		return
	}
	h.unsubscribe = h.store.Subscribe(h.forward)
	if h.alwaysOn {
		h.sim.Start()
	}
}

// Close stops the simulator and detaches from the store.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe == nil {
		return
	}
	h.sim.Stop()
	h.unsubscribe()
	h.unsubscribe = nil
	h.viewers = 0
}

// Join registers a viewer and returns the snapshot to send it.
func (h *Hub) Join() workflow.Snapshot {
	h.mu.Lock()
	h.viewers++
	first := h.viewers == 1
	if first && !h.alwaysOn {
		h.sim.Start()
	}
	n := h.viewers
	h.mu.Unlock()

	h.logger.Debug("Viewer joined.", "viewers", n)
	return h.store.Snapshot()
}

// Leave unregisters a viewer. Extra calls are ignored.
func (h *Hub) Leave() {
	h.mu.Lock()
	if h.viewers == 0 {
		h.mu.Unlock()
		return
	}
	h.viewers--
	if h.viewers == 0 && !h.alwaysOn {
		h.sim.Stop()
	}
	n := h.viewers
	h.mu.Unlock()

	h.logger.Debug("Viewer left.", "viewers", n)
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewers
}

// forward runs on the store's notification path and must not take h.mu:
// Join and Leave hold it while the simulator writes to the store.
func (h *Hub) forward(evt workflow.Event) {
	switch evt.Kind {
	case workflow.EventNodeUpdated:
		if evt.Node != nil {
			h.out.Broadcast(EventNodeUpdate, *evt.Node)
		}
	case workflow.EventSelectionChanged:
		h.out.Broadcast(EventSelection, SelectionPayload{SelectedNodeID: evt.SelectedID})
	case workflow.EventConnectionChanged:
		h.out.Broadcast(EventConnection, ConnectionPayload{Connected: evt.Connected})
	case workflow.EventGraphReplaced:
		h.out.Broadcast(EventSnapshot, h.store.Snapshot())
	}
}
