// Package server exposes the host's HTTP surface: health, plugin status
// and control, document upload and processing, and every plugin blueprint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/db"
	"github.com/finbridge/finbridge/logger"
	"github.com/finbridge/finbridge/plugin"
	"github.com/finbridge/finbridge/processing"
)

const shutdownTimeout = 10 * time.Second

// Server is the finbridge HTTP host.
type Server struct {
	cfg       config.WebConfig
	manager   *plugin.Manager
	processor *processing.Processor
	store     *db.Store
	host      *plugin.HostContext
	log       *zap.SugaredLogger
	router    chi.Router
}

// New assembles the server and its routes. The host context is reused for
// plugin reloads triggered over the API.
func New(cfg config.WebConfig, manager *plugin.Manager, processor *processing.Processor, store *db.Store, host *plugin.HostContext) *Server {
	s := &Server{
		cfg:       cfg,
		manager:   manager,
		processor: processor,
		store:     store,
		host:      host,
		log:       logger.Named("server"),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the assembled route tree.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/plugins", s.handlePluginStatus)
		r.Post("/plugins/{name}/reload", s.handlePluginReload)
		r.Post("/plugins/{name}/test", s.handlePluginTest)
		r.Post("/plugins/{name}/sync", s.handlePluginSync)

		r.Post("/documents", s.handleDocumentUpload)
		r.Get("/documents", s.handleDocumentList)
		r.Get("/documents/{id}", s.handleDocumentGet)

		r.Get("/sync", s.handleSyncHistory)
	})

	// plugin blueprints mount under /plugins/{name} and /api/plugins/{name}
	s.manager.RegisterBlueprints(r)
	return r
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debugw("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}
