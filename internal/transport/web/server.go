package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/advent259141/Astrbook/internal/config"
)

type Server struct {
	log    *log.Logger
	server *http.Server
	cfg    *config.Config
}

func New(logger *log.Logger, cfg *config.Config, deps Deps) *Server {
	srv := &http.Server{
		Addr:              cfg.AppPort,
		Handler:           newRouter(logger, cfg, deps),
		ReadTimeout:       30 * time.Second,
		// Streaming endpoints (ws, sse) hold the connection; no global
		// write timeout.
		WriteTimeout:      0,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{server: srv, cfg: cfg, log: logger}
}

func (ws *Server) Run() {
	ws.log.Printf("started on %s", ws.server.Addr)
	if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		ws.log.Fatalf("error: %v", err)
	}
}

func (ws *Server) Close(ctx context.Context) {
	if err := ws.server.Shutdown(ctx); err != nil {
		ws.log.Printf("forced to shutdown: %v", err)
	}
	ws.log.Println("exited gracefully")
}
