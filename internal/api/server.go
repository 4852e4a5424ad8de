package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"supmap-directions/internal/config"
	"supmap-directions/internal/navigation"
	"supmap-directions/internal/ws"
	"sync"
	"time"
)

type Server struct {
	Config           *config.Config
	WebsocketManager *ws.Manager
	SessionCache     navigation.SessionCache
	logger           *slog.Logger
}

func NewServer(config *config.Config, manager *ws.Manager, sessionCache navigation.SessionCache, logger *slog.Logger) *Server {
	return &Server{
		Config:           config,
		WebsocketManager: manager,
		SessionCache:     sessionCache,
		logger:           logger,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate;")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("API server is started.")); err != nil {
		s.logger.Error(fmt.Sprintf("Error writing response: %v", err))
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /navigation", s.wsHandler())
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler())
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSessionHandler())
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    net.JoinHostPort(s.Config.APIServerHost, s.Config.APIServerPort),
		Handler: s.routes(),
	}

	go func() {
		s.logger.Info("API server is running", "port", s.Config.APIServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed to listen and serve", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server failed to shutdown", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
