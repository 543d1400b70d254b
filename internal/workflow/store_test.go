package workflow

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowdash/internal/clock"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// fixedRand returns the same value on every draw.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func testGraph() Graph {
	return Graph{
		Nodes: []Node{
			{ID: "1", Label: "Data Ingestion", Status: StatusIdle, LastUpdated: epoch, LogMessage: "Waiting for trigger"},
			{ID: "2", Label: "Validation", Status: StatusIdle, LastUpdated: epoch, LogMessage: "Pending"},
			{ID: "3", Label: "Transform", Status: StatusIdle, LastUpdated: epoch, LogMessage: "Pending"},
		},
		Edges: []Edge{
			{ID: "e1-2", Source: "1", Target: "2"},
			{ID: "e2-3", Source: "2", Target: "3"},
		},
	}
}

func newTestStore(t *testing.T, r Rand) (*Store, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	if r == nil {
		r = rand.New(rand.NewPCG(1, 2))
	}
	return NewStore(testGraph(), WithClock(clk), WithRand(r)), clk
}

func TestUpdateNodeStatus_UpdatesOnlyTarget(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s, clk := newTestStore(t, nil)
	before := s.Snapshot()
	clk.Advance(time.Second)

	// --- Act ---
	updated, ok := s.UpdateNodeStatus("2", StatusRunning, "Processing validation...")

	// --- Assert ---
	require.True(t, ok)
	assert.Equal(t, StatusRunning, updated.Status)
	assert.Equal(t, "Processing validation...", updated.LogMessage)
	assert.Equal(t, epoch.Add(time.Second), updated.LastUpdated)
	assert.Nil(t, updated.Metrics, "metrics are only drawn on completion")

	after := s.Snapshot()
	for i, n := range after.Nodes {
		if n.ID == "2" {
			continue
		}
		if diff := cmp.Diff(before.Nodes[i], n); diff != "" {
			t.Errorf("node %s changed unexpectedly (-before +after):\n%s", n.ID, diff)
		}
	}
}

func TestUpdateNodeStatus_PreviousSnapshotIsUntouched(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	before := s.Nodes()

	s.UpdateNodeStatus("1", StatusFailed, "boom")

	assert.Equal(t, StatusIdle, before[0].Status, "copy-on-write must leave earlier slices intact")
	n, _ := s.Node("1")
	assert.Equal(t, StatusFailed, n.Status)
}

func TestUpdateNodeStatus_EmptyLogRetainsPrevious(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)

	updated, ok := s.UpdateNodeStatus("1", StatusRunning, "")

	require.True(t, ok)
	assert.Equal(t, "Waiting for trigger", updated.LogMessage)
}

func TestUpdateNodeStatus_CompletedDrawsMetrics(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, fixedRand(0.5))

	updated, ok := s.UpdateNodeStatus("3", StatusCompleted, "Transform completed successfully")

	require.True(t, ok)
	require.NotNil(t, updated.Metrics)
	assert.InDelta(t, 3500.0, updated.Metrics.DurationMS, 1e-9)
	assert.InDelta(t, 100.0, updated.Metrics.MemoryMB, 1e-9)
}

func TestUpdateNodeStatus_MetricsWithinBounds(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, rand.New(rand.NewPCG(42, 7)))

	for i := 0; i < 500; i++ {
		updated, _ := s.UpdateNodeStatus("1", StatusCompleted, "")
		require.NotNil(t, updated.Metrics)
		assert.GreaterOrEqual(t, updated.Metrics.DurationMS, MinDurationMS)
		assert.Less(t, updated.Metrics.DurationMS, MinDurationMS+DurationSpread)
		assert.GreaterOrEqual(t, updated.Metrics.MemoryMB, MinMemoryMB)
		assert.Less(t, updated.Metrics.MemoryMB, MinMemoryMB+MemorySpread)
	}
}

func TestUpdateNodeStatus_NonCompletedRetainsMetrics(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	completed, _ := s.UpdateNodeStatus("2", StatusCompleted, "")
	require.NotNil(t, completed.Metrics)

	failed, _ := s.UpdateNodeStatus("2", StatusFailed, "Error: Failed to process Validation")
	assert.Same(t, completed.Metrics, failed.Metrics, "failing keeps the previous metrics")

	idle, _ := s.UpdateNodeStatus("2", StatusIdle, "Reset after failure")
	assert.Same(t, completed.Metrics, idle.Metrics, "resetting keeps the previous metrics")
}

func TestUpdateNodeStatus_SameStatusTwice(t *testing.T) {
	t.Parallel()

	t.Run("running only restamps", func(t *testing.T) {
		s, clk := newTestStore(t, nil)

		clk.Advance(time.Second)
		first, _ := s.UpdateNodeStatus("1", StatusRunning, "")
		clk.Advance(time.Second)
		second, _ := s.UpdateNodeStatus("1", StatusRunning, "")

		assert.True(t, second.LastUpdated.After(first.LastUpdated))
		assert.Nil(t, second.Metrics)
	})

	t.Run("completed redraws metrics", func(t *testing.T) {
		s, clk := newTestStore(t, rand.New(rand.NewPCG(3, 4)))

		clk.Advance(time.Second)
		first, _ := s.UpdateNodeStatus("1", StatusCompleted, "")
		clk.Advance(time.Second)
		second, _ := s.UpdateNodeStatus("1", StatusCompleted, "")

		assert.True(t, second.LastUpdated.After(first.LastUpdated))
		require.NotNil(t, first.Metrics)
		require.NotNil(t, second.Metrics)
		assert.NotSame(t, first.Metrics, second.Metrics)
		assert.NotEqual(t, *first.Metrics, *second.Metrics)
	})
}

func TestUpdateNodeStatus_UnknownIDIsNoOp(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	before := s.Snapshot()
	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	_, ok := s.UpdateNodeStatus("nonexistent-id", StatusRunning, "")

	assert.False(t, ok)
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("store changed on a missed lookup (-before +after):\n%s", diff)
	}
	assert.Empty(t, events, "a missed lookup must not notify subscribers")
}

func TestSelection(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	n, _ := s.Node("2")

	// Select then clear.
	s.SetSelectedNode(&n)
	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)

	s.SetSelectedNode(nil)
	_, ok = s.Selected()
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot().SelectedNodeID)

	// Selecting twice is idempotent.
	s.SetSelectedNode(&n)
	first := s.Snapshot()
	s.SetSelectedNode(&n)
	assert.Equal(t, first, s.Snapshot())
}

func TestSelection_FollowsLatestNodeState(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	n, _ := s.Node("1")
	s.SetSelectedNode(&n)

	s.UpdateNodeStatus("1", StatusRunning, "Processing data ingestion...")

	got, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestSetNodes_DropsSelectionOfRemovedNode(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	n, _ := s.Node("3")
	s.SetSelectedNode(&n)

	s.SetNodes(testGraph().Nodes[:2])

	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot().SelectedNodeID)
	_, ok = s.UpdateNodeStatus("3", StatusRunning, "")
	assert.False(t, ok, "removed nodes are no longer addressable")
}

func TestSetNodes_DefaultsEmptyStatusToIdle(t *testing.T) {
	t.Parallel()

	s := NewStore(Graph{})
	s.SetNodes([]Node{{ID: "a", Label: "A"}})

	n, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, StatusIdle, n.Status)
}

func TestSetEdges(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	edges := []Edge{{ID: "x", Source: "1", Target: "3"}}

	s.SetEdges(edges)
	edges[0].Target = "2"

	assert.Equal(t, []Edge{{ID: "x", Source: "1", Target: "3"}}, s.Edges())
}

func TestSetConnected_NotifiesSubscribers(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	var got []Event
	unsubscribe := s.Subscribe(func(e Event) { got = append(got, e) })

	s.SetConnected(true)
	unsubscribe()
	s.SetConnected(false)

	require.Len(t, got, 1)
	assert.Equal(t, EventConnectionChanged, got[0].Kind)
	assert.True(t, got[0].Connected)
	assert.False(t, s.Connected())
}

func TestNodeForSequence(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)

	n, ok := s.NodeForSequence(4)
	require.True(t, ok)
	assert.Equal(t, "2", n.ID)

	_, ok = NewStore(Graph{}).NodeForSequence(0)
	assert.False(t, ok)
}

func TestSetNodePosition(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)

	assert.True(t, s.SetNodePosition("1", Position{X: 10, Y: 20}))
	assert.False(t, s.SetNodePosition("missing", Position{}))

	n, _ := s.Node("1")
	assert.Equal(t, Position{X: 10, Y: 20}, n.Position)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	s.UpdateNodeStatus("1", StatusRunning, "")
	s.UpdateNodeStatus("2", StatusCompleted, "")

	st := s.Stats()

	assert.Equal(t, 3, st.NodeCount)
	assert.Equal(t, 2, st.EdgeCount)
	assert.Equal(t, map[Status]int{
		StatusIdle: 1, StatusRunning: 1, StatusCompleted: 1, StatusFailed: 0,
	}, st.ByStatus)
}

// TestStore_ConcurrentAccess verifies that readers and writers can use the
// store at the same time without losing updates.
func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewStore(testGraph())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.UpdateNodeStatus("1", StatusCompleted, "done")
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
			_ = s.Stats()
		}()
	}
	wg.Wait()

	n, _ := s.Node("1")
	assert.Equal(t, StatusCompleted, n.Status)
	assert.Equal(t, "done", n.LogMessage)
}
