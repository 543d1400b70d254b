package feed

import (
	"log/slog"
	"net/http"

	"github.com/vk/flowdash/internal/workflow"
	"github.com/zishang520/socket.io/v2/socket"
)

// Path is where the socket.io endpoint is mounted.
const Path = "/socket.io/"

// Server exposes a Hub over socket.io.
type Server struct {
	io     *socket.Server
	hub    *Hub
	logger *slog.Logger
}

// NewServer creates a socket.io server feeding viewers from store and
// driving sim by viewer presence.
func NewServer(store *workflow.Store, sim Lifecycle, opts ...HubOption) *Server {
	s := &Server{io: socket.NewServer(nil, nil)}
	s.hub = NewHub(store, sim, s, opts...)
	s.logger = s.hub.logger.With("transport", "socket.io")

	s.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		logger := s.logger.With("sid", client.Id())
		logger.Info("Viewer connected.")

		client.Emit(EventSnapshot, s.hub.Join())
		client.On("disconnect", func(reason ...any) {
			logger.Info("Viewer disconnected.", "reason", reason)
			s.hub.Leave()
		})
	})
	return s
}

// Open starts forwarding store changes.
func (s *Server) Open() {
	s.hub.Open()
}

// Broadcast implements Broadcaster.
func (s *Server) Broadcast(event string, payload any) {
	s.io.Emit(event, payload)
}

// Handler returns the HTTP handler to mount at Path.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Hub returns the presence hub behind the server.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects every viewer and stops the simulator.
func (s *Server) Close() {
	s.hub.Close()
	s.io.Close(nil)
}
