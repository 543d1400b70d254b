// Package simulator emulates a live backend feed by walking pipeline nodes
// through their lifecycle on a randomized schedule.
//
// # How It Works
//
// Every Interval the outer timer fires and schedules an effect after a random
// jitter drawn from [JitterMin, JitterMax). When the effect fires it picks the
// node at index (sequence mod nodeCount), applies the next-state rule and
// writes the result into the workflow store. The sequence counter advances on
// every effect, even when the graph is empty.
//
//	idle      -> running    "Processing <label>..."
//	running   -> completed  "<label> completed successfully"
//	completed -> failed     "Error: Failed to process <label>"  (FailureRate)
//	completed -> idle       "Ready for next execution"
//	failed    -> idle       "Reset after failure"
//
// # Ordering
//
// Because of the jitter, effects may fire in a different order than their
// ticks. Each effect reads the node it targets at the moment it fires and
// overwrites that node's mutable fields, so out-of-order delivery never
// corrupts state.
//
// # Lifecycle
//
// Start sets the store's connectivity flag and arms the outer timer. Stop
// cancels the outer timer and every outstanding jitter timer, then clears the
// flag. No effect is applied after Stop returns. A stopped simulator can be
// started again.
package simulator
