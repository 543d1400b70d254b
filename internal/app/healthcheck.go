package app

import (
	"fmt"
	"net/http"

	"github.com/vk/flowdash/internal/feed"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// routes mounts the health probe, the live feed and the API on one mux.
func (a *App) routes(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.Handle(feed.Path, a.feed.Handler())
	mux.Handle("/api/", apiHandler)
	return mux
}
