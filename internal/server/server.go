package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nao1215/trustscan/internal/analyzer"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/model"
	"github.com/nao1215/trustscan/internal/ratelimit"
)

// maxBodyBytes caps the POST /analyze request body.
const maxBodyBytes = 64 << 10

// Analyzer runs analyses. *analyzer.Engine satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (*model.AnalysisResult, error)
}

// FlaggedReader reads flagged-site records. *flagged.Aggregator satisfies it.
type FlaggedReader interface {
	Search(ctx context.Context, q model.FlaggedQuery) (model.FlaggedPage, error)
	Get(ctx context.Context, hostname string) (model.FlaggedSiteRecord, error)
}

// Server is the HTTP API of the analysis engine.
type Server struct {
	analyzer Analyzer
	flagged  FlaggedReader
	limiter  *ratelimit.Limiter
	router   chi.Router
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimiter replaces the default limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		if l != nil {
			s.limiter = l
		}
	}
}

// New creates a Server. Without WithRateLimiter the default scopes apply.
func New(a Analyzer, f FlaggedReader, opts ...Option) *Server {
	s := &Server{
		analyzer: a,
		flagged:  f,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(
			ratelimit.ScopesFromConfig(config.DefaultRateLimits()),
			ratelimit.WithLogger(s.logger),
		)
	}
	s.router = chi.NewRouter()
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(cors)

	r.Get("/healthz", s.handleHealthz)

	r.With(s.limiter.Middleware(config.ScopeAnalyze)).Post("/analyze", s.handleAnalyze)

	r.Route("/flagged", func(r chi.Router) {
		r.Use(s.limiter.Middleware(config.ScopeFlagged))
		r.Get("/", s.handleSearchFlagged)
		r.Get("/{hostname}", s.handleGetFlagged)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe. The write
// timeout leaves room for the longest analysis deadline.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      config.MaxTimeout + 15*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
