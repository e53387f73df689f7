package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/ragline/internal/logger"
)

// Server serves the HTTP API.
type Server struct {
	ports  *Ports
	hub    *Hub
	router *http.ServeMux
	server *http.Server
}

// NewServer creates a server for the given ports. The hub receives status
// events from the pipeline; pass the same hub to its SetStatusPublisher.
func NewServer(ports *Ports, hub *Hub, addr string) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if hub == nil {
		hub = NewHub()
	}

	s := &Server{ports: ports, hub: hub}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           withMiddleware(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /embed-document", s.handleEmbedDocument)
	mux.HandleFunc("POST /embed-pending", s.handleEmbedPending)
	mux.HandleFunc("POST /rag-query", s.handleRAGQuery)

	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("POST /documents", s.handleUpload)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /documents/{id}/chunks", s.handleDocumentChunks)
	mux.HandleFunc("POST /documents/{id}/reset", s.handleResetDocument)

	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /admin/reembed", s.handleReembed)
	mux.HandleFunc("POST /admin/reload", s.handleReload)

	mux.Handle("GET /ws/status", s.hub)
	return mux
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown: %v", err)
		}
	}()

	logger.Get().Info().Str("address", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
