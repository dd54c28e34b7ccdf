// Package server exposes a guide engine over HTTP: the live page, a JSON
// search and fragment API, static content, and a WebSocket stream of
// fragment events for live reload.
//
// The server is a thin shell; all guide semantics live in the engine. It
// is meant for local preview and intranet serving, not the public
// internet.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/guide"
)

// requestTimeout bounds a single API request, including fragment loads it
// triggers.
const requestTimeout = 60 * time.Second

// Server serves a guide engine over HTTP.
type Server struct {
	engine *guide.Engine
	cfg    config.ServerConfig
	hub    *Hub
	router chi.Router
	http   *http.Server
}

// New creates a server over an initialized engine.
func New(engine *guide.Engine) *Server {
	s := &Server{
		engine: engine,
		cfg:    engine.Config().Server,
		hub:    NewHub(engine),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter wires middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/fragments", s.handleFragments)
		r.Post("/fragments/load", s.handleLoadAll)
		r.Post("/fragments/{id}/retry", s.handleRetry)
		r.Post("/viewport", s.handleViewport)
	})

	if s.cfg.LiveReload {
		r.Get("/ws", s.hub.handleWS)
	}

	r.Get("/", s.handleIndex)
	r.Get("/*", s.handleStatic)

	return r
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live-reload hub so the serve loop can push reload
// notifications after watcher-triggered page reloads.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start runs the event hub and listens until the server is shut down.
// It blocks; a nil return means a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * requestTimeout,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.cfg.LiveReload {
		go s.hub.Run(ctx)
	}

	slog.Info("guide server listening",
		slog.String("addr", s.Addr()),
		slog.Bool("live_reload", s.cfg.LiveReload))

	err := s.http.ListenAndServe()
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes client connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}
