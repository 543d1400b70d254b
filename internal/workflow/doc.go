// Package workflow holds the pipeline graph and the single store that owns its
// mutable state.
//
// # Why The Store Exists
//
// The store is the single source of truth for node status, selection and the
// connectivity flag shown to viewers. Topology (nodes and edges) is fixed for
// a session; only status, lastUpdated, logMessage and metrics change at
// runtime, and only through UpdateNodeStatus.
//
// # Copy-On-Write
//
// Every update replaces exactly one Node value in a freshly allocated slice.
// Snapshots handed out earlier keep referring to the old slice, so readers
// never observe a partially applied change and untouched nodes stay equal to
// their previous values.
//
// # Tolerance
//
// Lookups by id that miss are silent no-ops. The simulator may hold indices
// that went stale after SetNodes, and that must never surface as an error.
//
// # Thread-Safety
//
// Store methods are safe for concurrent use. Subscribers are notified after
// the store lock is released, in commit order. A lone writer delivers its own
// events before returning; when writers overlap, whichever is already
// delivering also delivers the events queued behind it.
package workflow
