package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vk/flowdash/internal/admin"
	"github.com/vk/flowdash/internal/metrics"
	"github.com/vk/flowdash/internal/session"
)

type simulatorResponse struct {
	Interval    string  `json:"interval"`
	JitterMin   string  `json:"jitterMin"`
	JitterMax   string  `json:"jitterMax"`
	FailureRate float64 `json:"failureRate"`
	Running     bool    `json:"running"`
	Pending     int     `json:"pending"`
	Sequence    uint64  `json:"sequence"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reading := s.deps.Metrics.Get(r.Context())
	if reading.Metrics == nil && reading.State == metrics.StateFailed {
		writeJSON(w, http.StatusServiceUnavailable, reading)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	s.deps.Console.Opened(r.Context(), user)
	writeJSON(w, http.StatusOK, s.deps.Console.Sections(user))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	entry, err := s.deps.Console.Perform(r.Context(), user, r.PathValue("action"))
	switch {
	case errors.Is(err, admin.ErrUnknownAction):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, admin.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case err != nil:
		s.logger.Error("Admin action failed.", "error", err)
		writeError(w, http.StatusInternalServerError, "action failed")
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.deps.Console.Recent(limit))
}

func (s *Server) simulatorStatus() simulatorResponse {
	cfg := s.deps.Simulator.Config()
	return simulatorResponse{
		Interval:    cfg.Interval.String(),
		JitterMin:   cfg.JitterMin.String(),
		JitterMax:   cfg.JitterMax.String(),
		FailureRate: cfg.FailureRate,
		Running:     s.deps.Simulator.Running(),
		Pending:     s.deps.Simulator.Pending(),
		Sequence:    s.deps.Simulator.Sequence(),
	}
}

func (s *Server) handleSimulatorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.simulatorStatus())
}

func (s *Server) handleSimulatorStart(w http.ResponseWriter, r *http.Request) {
	s.deps.Simulator.Start()
	s.recordSimulatorAction(r, "simulator_start")
	writeJSON(w, http.StatusOK, s.simulatorStatus())
}

func (s *Server) handleSimulatorStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Simulator.Stop()
	s.recordSimulatorAction(r, "simulator_stop")
	writeJSON(w, http.StatusOK, s.simulatorStatus())
}

func (s *Server) recordSimulatorAction(r *http.Request, action string) {
	user := session.UserFromContext(r.Context())
	s.deps.Telemetry.UserAction(r.Context(), action, map[string]any{"userId": user.ID, "role": string(user.Role)})
}
