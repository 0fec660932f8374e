package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/mkarlis/folio/internal/modules/holdings"
	"github.com/mkarlis/folio/internal/modules/ledger"
	"github.com/mkarlis/folio/internal/modules/marketdata"
	"github.com/mkarlis/folio/internal/modules/stats"
	"github.com/mkarlis/folio/internal/modules/valuation"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	DevMode bool

	Ledger     *ledger.Handler
	Holdings   *holdings.Handler
	MarketData *marketdata.Handler
	Valuation  *valuation.Handler
	Stats      *stats.Handler
	System     *SystemHandlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.Ledger.HandleCreate)
			r.Post("/import", cfg.Ledger.HandleImport)
			r.Get("/", cfg.Ledger.HandleList)
			r.Delete("/", cfg.Ledger.HandleClear)
		})

		r.Get("/holdings", cfg.Holdings.HandleGetHoldings)

		r.Route("/prices", func(r chi.Router) {
			r.Get("/manual", cfg.MarketData.HandleListManual)
			r.Post("/refresh", cfg.MarketData.HandleRefresh)
			r.Get("/{ticker}", cfg.MarketData.HandleGetPrice)
			r.Post("/{ticker}/manual", cfg.MarketData.HandleSetManual)
			r.Delete("/{ticker}/manual", cfg.MarketData.HandleRemoveManual)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", cfg.Valuation.HandleGetPortfolio)
			r.Get("/summary", cfg.Valuation.HandleGetSummary)
			r.Get("/stats", cfg.Stats.HandleGetStats)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", cfg.System.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
