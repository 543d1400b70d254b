package workflow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubscribe_OverlappingWritersDeliverInCommitOrder blocks the subscriber
// on the first write while a second write commits, then checks that the last
// event delivered matches the store.
func TestSubscribe_OverlappingWritersDeliverInCommitOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s, _ := newTestStore(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var delivered []Event
	s.Subscribe(func(evt Event) {
		if evt.Kind != EventNodeUpdated {
			return
		}
		if evt.Node.Status == StatusRunning {
			close(entered)
			<-release
		}
		mu.Lock()
		delivered = append(delivered, evt)
		mu.Unlock()
	})

	// --- Act ---
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		s.UpdateNodeStatus("2", StatusRunning, "Processing validation...")
	}()
	<-entered
	_, ok := s.UpdateNodeStatus("2", StatusCompleted, "Validation completed successfully")
	close(release)
	<-firstDone

	// --- Assert ---
	require.True(t, ok)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 2)
	assert.Equal(t, StatusRunning, delivered[0].Node.Status)
	assert.Equal(t, StatusCompleted, delivered[1].Node.Status)
	assert.Less(t, delivered[0].Version, delivered[1].Version)

	n, _ := s.Node("2")
	assert.Equal(t, n.Status, delivered[len(delivered)-1].Node.Status)
}

func TestSubscribe_WriteFromSubscriber(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s, _ := newTestStore(t, nil)
	var kinds []EventKind
	s.Subscribe(func(evt Event) {
		kinds = append(kinds, evt.Kind)
		if evt.Kind == EventConnectionChanged {
			node, _ := s.Node("1")
			s.SetSelectedNode(&node)
		}
	})

	// --- Act ---
	s.SetConnected(true)

	// --- Assert ---
	assert.Equal(t, []EventKind{EventConnectionChanged, EventSelectionChanged}, kinds)
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "1", sel.ID)
}

func TestSubscribe_VersionsIncrease(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, nil)
	var versions []uint64
	unsubscribe := s.Subscribe(func(evt Event) { versions = append(versions, evt.Version) })

	s.UpdateNodeStatus("1", StatusRunning, "")
	s.UpdateNodeStatus("missing", StatusRunning, "")
	s.SetNodePosition("1", Position{X: 1, Y: 2})
	s.SetSelectedNode(nil)
	unsubscribe()
	s.SetConnected(true)

	assert.Equal(t, []uint64{1, 2, 3}, versions)
}
