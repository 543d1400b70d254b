package workflow

// EventKind identifies what changed in the store.
type EventKind string

const (
	EventNodeUpdated       EventKind = "node_updated"
	EventSelectionChanged  EventKind = "selection_changed"
	EventConnectionChanged EventKind = "connection_changed"
	EventGraphReplaced     EventKind = "graph_replaced"
)

// Event describes one change. Only the fields relevant to Kind are set.
// Version increases with every committed change, and subscribers see events
// in Version order.
type Event struct {
	Kind       EventKind
	Version    uint64
	Node       *Node
	SelectedID string
	Connected  bool
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. fn runs with no store lock held and may read or write the
// store. Events caused by such a write are delivered after fn returns, and
// the writer does not wait for them.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// enqueueLocked stamps evt with the next version and queues it for delivery.
// s.mu must be held so the queue follows commit order.
func (s *Store) enqueueLocked(evt Event) {
	s.version++
	evt.Version = s.version
	s.dispatchMu.Lock()
	s.queue = append(s.queue, evt)
	s.dispatchMu.Unlock()
}

// dispatch delivers queued events. One goroutine delivers at a time; a caller
// that finds delivery in progress leaves its events to that goroutine.
func (s *Store) dispatch() {
	s.dispatchMu.Lock()
	if s.dispatching {
		s.dispatchMu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		s.dispatchMu.Unlock()
		for _, evt := range batch {
			s.publish(evt)
		}
		s.dispatchMu.Lock()
	}
	s.dispatching = false
	s.dispatchMu.Unlock()
}

func (s *Store) publish(evt Event) {
	s.subsMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
}
