package api

import (
	"errors"
	"net/http"

	"github.com/vk/flowdash/internal/access"
	"github.com/vk/flowdash/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meResponse struct {
	User        session.User        `json:"user"`
	Permissions []access.Permission `json:"permissions"`
}

type loginResponse struct {
	session.Result
	Permissions []access.Permission `json:"permissions"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error("Login failed.", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.deps.Telemetry.UserAction(r.Context(), "login", map[string]any{"userId": res.User.ID, "role": string(res.User.Role)})
	writeJSON(w, http.StatusOK, loginResponse{Result: *res, Permissions: res.User.Permissions()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	if err := s.deps.Sessions.Logout(r.Context(), token); err != nil {
		s.logger.Error("Logout failed.", "error", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := session.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{User: *user, Permissions: user.Permissions()})
}
