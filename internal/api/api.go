// Package api exposes the aggregation results and controls over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nanoqc/nanoqc/internal/config"
	"github.com/nanoqc/nanoqc/internal/jobs"
	xlog "github.com/nanoqc/nanoqc/internal/log"
	"github.com/nanoqc/nanoqc/internal/report"
	"github.com/nanoqc/nanoqc/internal/store"
)

// Server serves reports, history and refresh control.
type Server struct {
	cfg        config.Config
	db         *store.Store
	refreshing atomic.Bool
	startTime  time.Time

	mu     sync.RWMutex
	status jobs.Status

	// refreshFn allows tests to stub the aggregation; defaults to the
	// runner's Run.
	refreshFn func(context.Context) (*report.Report, error)
}

// Option configures a Server.
type Option func(*Server)

// WithRefreshFunc overrides the aggregation function (for tests).
func WithRefreshFunc(f func(context.Context) (*report.Report, error)) Option {
	return func(s *Server) {
		s.refreshFn = f
	}
}

// New builds a Server. db and runner may be nil; the matching endpoints
// then answer 503.
func New(cfg config.Config, db *store.Store, runner *jobs.Runner, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		db:        db,
		startTime: time.Now(),
	}
	if runner != nil {
		s.refreshFn = runner.Run
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the HTTP routes with logging, panic recovery and
// per-IP rate limiting.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit, time.Minute))
		}
		r.Get("/status", s.handleStatus)
		r.Get("/reports/latest", s.handleLatestReport)
		r.Get("/reports/{id}", s.handleReport)
		r.Get("/history", s.handleHistory)
		// Refresh re-reads every source file; keep its budget tight.
		r.With(rateLimit(10, time.Minute)).Post("/refresh", s.handleRefresh)
	})
	return r
}

// rateLimit wraps httprate's sliding window limiter with a JSON 429.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", window.String())
			writeJSON(w, http.StatusTooManyRequests,
				map[string]string{"error": "rate_limit_exceeded"})
		}),
	)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := xlog.WithComponent("api")
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		logger.Info().
			Str("event", "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimw.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(started)).
			Msg("request served")
	})
}

// Status returns the record of the most recent refresh.
func (s *Server) Status() jobs.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) setStatus(st jobs.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}
