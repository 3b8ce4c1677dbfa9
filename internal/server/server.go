// Package server provides the HTTP API for JurisChat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// MaxQuestionBody is the largest /api/ask body read; the rest is ignored.
const MaxQuestionBody = 64 << 10

// Asker answers a legal question. *search.Engine implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// Server is the HTTP server for the JurisChat API.
type Server struct {
	asker  Asker
	ledger storage.Ledger
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server. ledger may be nil, in which case /api/status reports no runs.
func NewServer(asker Asker, ledger storage.Ledger, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		asker:  asker,
		ledger: ledger,
		config: cfg,
		logger: logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))
	r.Use(middleware.Compress(5))

	r.Post("/api/ask", s.handleAsk)
	r.Get("/api/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config == nil || s.config.Server.RequestTimeoutSecs <= 0 {
		return 180 * time.Second
	}
	return time.Duration(s.config.Server.RequestTimeoutSecs) * time.Second
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
