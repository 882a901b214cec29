// Package server exposes chat sessions to the web front-end over HTTP,
// Server-Sent Events and WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/killallgit/canvaschat/pkg/backend"
	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/killallgit/canvaschat/pkg/controllers"
	"github.com/killallgit/canvaschat/pkg/logger"
)

// healthTimeout bounds the backend probe behind /api/status
const healthTimeout = 3 * time.Second

// HealthChecker probes the model backend
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server holds the live sessions
type Server struct {
	factory  *controllers.Factory
	health   HealthChecker
	log      *logger.ComponentLogger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*controllers.Controller
}

// New creates a server whose sessions come from factory. health may be nil
// when the transport has no backend to probe.
func New(factory *controllers.Factory, health HealthChecker) *Server {
	return &Server{
		factory: factory,
		health:  health,
		log:     logger.WithComponent("server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[string]*controllers.Controller),
	}
}

// NewHTTPServer builds the front-end API server from configuration
func NewHTTPServer(cfg *config.Config) (*http.Server, error) {
	transport, err := chat.NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	var health HealthChecker
	if checker, ok := transport.(HealthChecker); ok {
		health = checker
	}

	srv := New(controllers.NewFactory(transport, controllers.OptionsFromConfig(cfg)), health)
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// Router wires the API routes
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(backend.CORS(corsOrigins))

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Post("/sessions", s.handleCreateSession)

		api.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", s.handleGetSession)
			sr.Delete("/", s.handleDeleteSession)
			sr.Post("/messages", s.handleSendMessage)
			sr.Put("/canvas", s.handleSetCanvas)
			sr.Post("/patch/accept", s.handleAcceptPatch)
			sr.Post("/patch/reject", s.handleRejectPatch)
			sr.Post("/cancel", s.handleCancel)
			sr.Post("/reset", s.handleReset)
			sr.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// CreateSession registers a new session
func (s *Server) CreateSession() *controllers.Controller {
	ctrl := s.factory.New()

	s.mu.Lock()
	s.sessions[ctrl.ID()] = ctrl
	s.mu.Unlock()

	s.log.Info("Session created", "session", ctrl.ID())
	return ctrl
}

// Session looks up a session by ID
func (s *Server) Session(id string) (*controllers.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctrl, ok := s.sessions[id]
	return ctrl, ok
}

// DeleteSession cancels and forgets a session
func (s *Server) DeleteSession(id string) bool {
	s.mu.Lock()
	ctrl, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		ctrl.Cancel()
	}
	return ok
}

// Status reports backend health and session activity
type Status struct {
	Backend   string `json:"backend"`
	Error     string `json:"error,omitempty"`
	Sessions  int    `json:"sessions"`
	Streaming int    `json:"streaming"`
}

// Status probes the backend and counts sessions with an exchange in flight
func (s *Server) Status(ctx context.Context) Status {
	status := Status{Backend: "unknown"}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		if err := s.health.Health(ctx); err != nil {
			status.Backend = "unavailable"
			status.Error = err.Error()
		} else {
			status.Backend = "ok"
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	status.Sessions = len(s.sessions)
	for _, ctrl := range s.sessions {
		if ctrl.Session().IsStreaming() {
			status.Streaming++
		}
	}
	return status
}
