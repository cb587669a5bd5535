// Package web provides the JSON HTTP API: import job lifecycle, mapping
// detection and templates, offer toggles and product rollups.
package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ouestoffice/catalog/internal/config"
	"github.com/ouestoffice/catalog/internal/importer"
)

// Server is the HTTP server for the catalog import API.
type Server struct {
	svc    *importer.Service
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

// NewServer wires middleware and routes around the import service.
func NewServer(cfg *config.Config, svc *importer.Service) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(newIPRateLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Import job lifecycle. Upload and apply get their own tighter
		// rate limit: both move a lot of data per request.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(newIPRateLimiter(s.cfg.Rate.ImportLimit).middleware)
			}
			r.Post("/imports", s.handleCreateImport)
			r.Post("/imports/{jobID}/apply", s.handleApplyImport)
			r.Post("/imports/{jobID}/rollback", s.handleRollbackImport)
			r.Post("/mapping/detect", s.handleDetectMapping)
		})

		r.Get("/imports", s.handleListImports)
		r.Get("/imports/{jobID}", s.handleGetImport)
		r.Get("/imports/{jobID}/rows", s.handleImportRows)

		// Mapping templates
		r.Get("/mapping/templates", s.handleListTemplates)
		r.Post("/mapping/templates", s.handleCreateTemplate)
		r.Delete("/mapping/templates/{id}", s.handleDeleteTemplate)

		// Catalog reads and manual offer control
		r.Get("/products/{productID}/rollup", s.handleProductRollup)
		r.Post("/offers/{offerID}/toggle", s.handleToggleOffer)
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
