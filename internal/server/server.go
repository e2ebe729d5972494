package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/motionscore/internal/session"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	factory  *session.Factory
	sessions *Manager
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(factory *session.Factory, sessions *Manager, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		factory:  factory,
		sessions: sessions,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Exercise catalogue is public.
	s.router.Get("/api/v1/exercises", s.handleExercises)

	// Analysis endpoints (API key required).
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/frames", s.handlePushFrames)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
	})
}
