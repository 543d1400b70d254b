// Package app wires the dashboard together: it loads the pipeline, builds the
// workflow store, simulator, session provider, metrics poller, admin console
// and live feed, and serves them over one HTTP listener until the context is
// cancelled. It is decoupled from any specific entrypoint like a CLI.
package app
