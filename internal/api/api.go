// Package api serves the JSON HTTP surface of the dashboard: login and
// logout, the workflow graph, metrics, and the admin console. Every route
// except login is gated by a bearer session and, where needed, a permission.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/flowdash/internal/access"
	"github.com/vk/flowdash/internal/admin"
	"github.com/vk/flowdash/internal/metrics"
	"github.com/vk/flowdash/internal/session"
	"github.com/vk/flowdash/internal/simulator"
	"github.com/vk/flowdash/internal/telemetry"
	"github.com/vk/flowdash/internal/workflow"
)

// Sessions issues and verifies bearer tokens.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*session.Result, error)
	Authenticate(ctx context.Context, token string) (*session.User, error)
	Logout(ctx context.Context, token string) error
}

// Simulator is the simulator surface exposed to administrators.
type Simulator interface {
	Start()
	Stop()
	Running() bool
	Pending() int
	Sequence() uint64
	Config() simulator.Config
}

// Metrics serves the current metrics reading.
type Metrics interface {
	Get(ctx context.Context) metrics.Reading
}

// Deps are the services behind the API.
type Deps struct {
	Store     *workflow.Store
	Simulator Simulator
	Sessions  Sessions
	Metrics   Metrics
	Console   *admin.Console
	Telemetry *telemetry.Emitter
	Logger    *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates the API server and registers its routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger.With("component", "api"), mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.Handle("POST /api/logout", s.requireSession(http.HandlerFunc(s.handleLogout)))
	s.mux.Handle("GET /api/me", s.requireSession(http.HandlerFunc(s.handleMe)))

	s.mux.Handle("GET /api/workflow", s.require(access.PermissionView, s.handleWorkflow))
	s.mux.Handle("PUT /api/workflow/selection", s.require(access.PermissionView, s.handleSelection))
	s.mux.Handle("POST /api/workflow/nodes/{id}/status", s.require(access.PermissionEdit, s.handleNodeStatus))
	s.mux.Handle("PUT /api/workflow/nodes/{id}/position", s.require(access.PermissionEdit, s.handleNodePosition))

	s.mux.Handle("GET /api/metrics", s.require(access.PermissionView, s.handleMetrics))

	s.mux.Handle("GET /api/admin/sections", s.requireSession(http.HandlerFunc(s.handleSections)))
	s.mux.Handle("POST /api/admin/actions/{action}", s.requireSession(http.HandlerFunc(s.handleAction)))
	s.mux.Handle("GET /api/admin/activity", s.require(access.PermissionView, s.handleActivity))
	s.mux.Handle("GET /api/admin/simulator", s.require(access.PermissionConfigure, s.handleSimulatorStatus))
	s.mux.Handle("POST /api/admin/simulator/start", s.require(access.PermissionManage, s.handleSimulatorStart))
	s.mux.Handle("POST /api/admin/simulator/stop", s.require(access.PermissionManage, s.handleSimulatorStop))
}

// ServeHTTP implements http.Handler and records request latency.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)

	_, pattern := s.mux.Handler(r)
	if pattern == "" {
		return
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	s.deps.Telemetry.Performance(r.Context(), pattern, elapsed, "ms")
}
