// Package server exposes parcel analysis over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pleiade/zoneshare/internal/analysis"
	"github.com/pleiade/zoneshare/internal/metrics"
)

// Analyzer runs one parcel query.
type Analyzer interface {
	Analyze(ctx context.Context, id string) (*analysis.Result, error)
}

// Options configures the HTTP handler.
type Options struct {
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
}

// Server holds the HTTP routes.
type Server struct {
	analyzer Analyzer
	metrics  *metrics.Provider
	limiter  *rate.Limiter
	opts     Options
}

// New creates a Server. m may be nil, in which case /metrics is not mounted.
func New(a Analyzer, m *metrics.Provider, opts Options) *Server {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		analyzer: a,
		metrics:  m,
		limiter:  rate.NewLimiter(limit, burst),
		opts:     opts,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/parcels/{id}/analysis", s.handleAnalysis)
	})
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// errorBody is the JSON body of a failed query.
type errorBody struct {
	Error  *analysis.QueryError `json:"error"`
	Result *analysis.Result     `json:"result,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.analyzer.Analyze(r.Context(), id)
	if err != nil {
		qe, ok := analysis.AsQueryError(err)
		if !ok {
			zap.L().Error("analysis failed",
				zap.String("component", "server"),
				zap.String("parcel", id),
				zap.Error(err),
			)
			qe = &analysis.QueryError{Message: "internal error"}
		}
		writeJSON(w, StatusFor(qe.Kind), errorBody{Error: qe, Result: qe.Partial})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StatusFor maps a query error kind to an HTTP status.
func StatusFor(kind analysis.Kind) int {
	switch kind {
	case analysis.KindParcelNotFound:
		return http.StatusNotFound
	case analysis.KindInvalidIdentifier:
		return http.StatusBadRequest
	case analysis.KindDuplicateParcel:
		return http.StatusConflict
	case analysis.KindNoZoningIntersection, analysis.KindMissingClassificationField, analysis.KindInvalidGeometry:
		return http.StatusUnprocessableEntity
	case analysis.KindSourceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		}
		zap.L().Debug("http request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.String("component", "server"), zap.Error(err))
	}
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("component", "server"), zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down server", zap.String("component", "server"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server: shutdown")
	case err := <-errCh:
		return eris.Wrap(err, "server: listen")
	}
}
