package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vk/flowdash/internal/access"
	"github.com/vk/flowdash/internal/ctxlog"
	"github.com/vk/flowdash/internal/session"
)

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// requireSession rejects requests without a valid session and stores the
// user in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.deps.Sessions.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrSessionNotFound) {
				s.logger.Error("Session lookup failed.", "error", err)
			}
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := session.WithUser(r.Context(), user)
		ctx = ctxlog.WithLogger(ctx, s.logger.With("userId", user.ID, "role", user.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require wraps h with a session check and a permission check.
func (s *Server) require(perm access.Permission, h http.HandlerFunc) http.Handler {
	return s.requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := session.UserFromContext(r.Context())
		if !user.Can(perm) {
			ctxlog.FromContext(r.Context()).Warn("Permission denied.", "permission", perm, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "permission "+string(perm)+" required")
			return
		}
		h(w, r)
	}))
}
