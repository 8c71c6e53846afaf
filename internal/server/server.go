// Package server exposes extraction and quoting over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/law-makers/landed/internal/quote"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
)

// Extractor is the extraction surface the API needs
type Extractor interface {
	Extract(ctx context.Context, rawURL string) models.ProductRecord
	Batch(ctx context.Context, urls []string, concurrency int, onDone func(i int, rec models.ProductRecord)) []models.ProductRecord
}

// Quoter prices quote lines
type Quoter interface {
	Quote(lines []quote.Line) (quote.Quote, error)
}

// Options configures the HTTP server
type Options struct {
	Addr             string
	AllowedOrigins   []string
	BatchConcurrency int
	ShutdownTimeout  time.Duration
}

// Server is the HTTP API
type Server struct {
	extractor Extractor
	quoter    Quoter
	validate  *validator.Validate
	opts      Options
	router    chi.Router
}

// New builds the router. Nothing listens until ListenAndServe.
func New(extractor Extractor, quoter Quoter, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		extractor: extractor,
		quoter:    quoter,
		validate:  newValidator(),
		opts:      opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", s.extractPost)
		r.Get("/extract", s.extractGet)
		r.Post("/extract/batch", s.extractBatch)
		r.Post("/quote", s.quote)
	})

	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
