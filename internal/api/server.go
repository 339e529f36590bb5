// Package api provides the HTTP API server and handlers for the ShopSight catalog service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shopsight/shopsight-server/internal/catalog"
	"github.com/shopsight/shopsight-server/internal/http/response"
	"github.com/shopsight/shopsight-server/internal/ratelimit"
	"github.com/shopsight/shopsight-server/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	registry *catalog.Registry
	backend  store.Backend
	limiter  *ratelimit.KeyedRateLimiter
	router   *chi.Mux
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(registry *catalog.Registry, backend store.Backend, logger *slog.Logger) *Server {
	s := &Server{
		registry: registry,
		backend:  backend,
		limiter:  ratelimit.New(50, 100),
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-owned resources.
func (s *Server) Close() {
	s.limiter.Stop()
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.rateLimit)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/catalogs", s.handleListCatalogs)

		r.Route("/{catalog}", func(r chi.Router) {
			r.Get("/products", s.handleListProducts)
			r.Get("/search", s.handleSearch)
			r.Get("/filter", s.handleFilter)
			r.Get("/product/{id}", s.handleGetProduct)
			r.Get("/product/{id}/data", s.handleGetProductData)
			r.Get("/analytics", s.handleAnalytics)
			r.Get("/advanced-analytics", s.handleAdvancedAnalytics)
			r.Get("/crawls", s.handleCrawls)
		})
	})
}

// rateLimit rejects clients exceeding the per-IP request budget.
// RealIP runs earlier in the chain, so RemoteAddr is the client address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			s.logger.Warn("Rate limit exceeded", "ip", r.RemoteAddr, "path", r.URL.Path)
			response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
