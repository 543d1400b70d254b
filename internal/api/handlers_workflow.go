package api

import (
	"net/http"

	"github.com/vk/flowdash/internal/session"
	"github.com/vk/flowdash/internal/workflow"
)

type workflowResponse struct {
	workflow.Snapshot
	Stats workflow.Stats `json:"stats"`
}

type selectionRequest struct {
	NodeID *string `json:"nodeId"`
}

type selectionResponse struct {
	SelectedNodeID string         `json:"selectedNodeId"`
	Node           *workflow.Node `json:"node,omitempty"`
}

type statusRequest struct {
	Status     string `json:"status"`
	LogMessage string `json:"logMessage"`
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	s.deps.Telemetry.View(r.Context(), "workflow_view", map[string]any{"userId": user.ID})
	writeJSON(w, http.StatusOK, workflowResponse{Snapshot: s.deps.Store.Snapshot(), Stats: s.deps.Store.Stats()})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.NodeID == nil || *req.NodeID == "" {
		s.deps.Store.SetSelectedNode(nil)
		writeJSON(w, http.StatusOK, selectionResponse{})
		return
	}

	node, ok := s.deps.Store.Node(*req.NodeID)
	if !ok {
		writeError(w, http.StatusNotFound, "node "+*req.NodeID+" not found")
		return
	}
	s.deps.Store.SetSelectedNode(&node)
	writeJSON(w, http.StatusOK, selectionResponse{SelectedNodeID: node.ID, Node: &node})
}

func (s *Server) handleNodeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := workflow.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	node, ok := s.deps.Store.UpdateNodeStatus(id, status, req.LogMessage)
	if !ok {
		writeError(w, http.StatusNotFound, "node "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleNodePosition(w http.ResponseWriter, r *http.Request) {
	var pos workflow.Position
	if err := decodeJSON(r, &pos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	if !s.deps.Store.SetNodePosition(id, pos) {
		writeError(w, http.StatusNotFound, "node "+id+" not found")
		return
	}
	node, _ := s.deps.Store.Node(id)
	writeJSON(w, http.StatusOK, node)
}
