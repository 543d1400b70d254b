package workflow

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidGraph wraps every topology validation failure.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// Status is the lifecycle state of a node.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusIdle, StatusRunning, StatusCompleted, StatusFailed}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown node status %q", s)
	}
	return status, nil
}

// Position is the node's place on the canvas. It is owned by the view.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Metrics are the synthetic execution figures attached when a node completes.
type Metrics struct {
	// DurationMS is the execution time in milliseconds.
	DurationMS float64 `json:"duration"`
	// MemoryMB is the peak memory in megabytes.
	MemoryMB float64 `json:"memory"`
}

// Node is one pipeline stage.
//
// LogMessage is optional: the empty string means no message has been
// recorded. Metrics is optional: nil means the node has never completed.
// Once set, Metrics is never mutated in place, so copies of a Node may share
// the pointer.
type Node struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Position    Position  `json:"position"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"lastUpdated"`
	LogMessage  string    `json:"logMessage,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Edge is a directed dependency from Source to Target.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is an ordered node sequence plus the edges between them.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Validate checks that ids are unique and present, every edge references an
// existing node, and the edges form a DAG.
func (g Graph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node at index %d has an empty id", ErrInvalidGraph, i)
		}
		if n.Label == "" {
			return fmt.Errorf("%w: node %q has an empty label", ErrInvalidGraph, n.ID)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, n.ID)
		}
		if n.Status != "" && !n.Status.Valid() {
			return fmt.Errorf("%w: node %q has unknown status %q", ErrInvalidGraph, n.ID, n.Status)
		}
		ids[n.ID] = struct{}{}
	}

	edgeIDs := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID != "" {
			if _, dup := edgeIDs[e.ID]; dup {
				return fmt.Errorf("%w: duplicate edge id %q", ErrInvalidGraph, e.ID)
			}
			edgeIDs[e.ID] = struct{}{}
		}
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("%w: edge %q source %q not found", ErrInvalidGraph, e.ID, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("%w: edge %q target %q not found", ErrInvalidGraph, e.ID, e.Target)
		}
	}

	if cycle := g.findCycleMember(); cycle != "" {
		return fmt.Errorf("%w: cycle detected involving node %q", ErrInvalidGraph, cycle)
	}
	return nil
}

// findCycleMember runs Kahn's algorithm and returns the id of a node left
// with unresolved incoming edges, or "" when the graph is acyclic.
func (g Graph) findCycleMember() string {
	inDegree := make(map[string]int, len(g.Nodes))
	out := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		inDegree[e.Target]++
		out[e.Source] = append(out[e.Source], e.Target)
	}

	queue := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range out[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited == len(g.Nodes) {
		return ""
	}
	for _, n := range g.Nodes {
		if inDegree[n.ID] > 0 {
			return n.ID
		}
	}
	return ""
}
