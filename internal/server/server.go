// Package server exposes pkghealth over HTTP.
//
// Routes:
//
//	GET /api/resolve/{name}?version=&maxDepth=   dependency tree
//	GET /api/health/{name}                       health score
//	GET /api/package/{name}?version=             package metadata
//	GET /api/search?q=&limit=                    registry search, {"results": [...]}
//	GET /healthz                                 liveness and upstream circuit states
//	GET /metrics                                 Prometheus metrics
//
// Scoped names may be sent raw (/api/health/@babel/core) or with the slash
// escaped (/api/health/@babel%2Fcore). Errors are JSON objects
// {"error": message, "code": CODE} with the status the code maps to.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/pkghealth/pkg/app"
	"github.com/matzehuels/pkghealth/pkg/buildinfo"
	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

const (
	defaultRequestTimeout = 60 * time.Second
	shutdownTimeout       = 10 * time.Second
)

// Service is what the routes call into. *app.App implements it.
type Service interface {
	ResolveDependencyTree(ctx context.Context, name, version string, maxDepth int) (*deps.Tree, error)
	CalculateHealth(ctx context.Context, name string) (health.Score, error)
	FindPackage(ctx context.Context, name, version string) (*packages.Metadata, error)
	SearchPackages(ctx context.Context, query string, limit int) ([]packages.SearchResult, error)
	Breakers() map[string]string
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc      Service
	logger   *log.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server. A nil logger uses log.Default().
func New(svc Service, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		svc:      svc,
		logger:   logger,
		gatherer: prometheus.DefaultGatherer,
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if s.timeout > 0 {
			r.Use(middleware.Timeout(s.timeout))
		}
		r.Get("/resolve/*", s.handleResolve)
		r.Get("/health/*", s.handleHealth)
		r.Get("/package/*", s.handlePackage)
		r.Get("/search", s.handleSearch)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	depth, err := intQuery(r, "maxDepth", deps.DefaultMaxDepth)
	if err != nil {
		writeError(w, err)
		return
	}

	tree, err := s.svc.ResolveDependencyTree(r.Context(), name, versionQuery(r), depth)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	score, err := s.svc.CalculateHealth(r.Context(), name)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	meta, err := s.svc.FindPackage(r.Context(), name, versionQuery(r))
	if err != nil {
		s.logFailure(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", app.DefaultSearchLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := s.svc.SearchPackages(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, err)
		return
	}
	if results == nil {
		results = []packages.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchBody{Results: results})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthzBody{
		Status:   "ok",
		Version:  buildinfo.Version,
		Upstream: s.svc.Breakers(),
	})
}

func (s *Server) logFailure(r *http.Request, err error) {
	level := log.DebugLevel
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		level = log.WarnLevel
	}
	s.logger.Log(level, "request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
}

// =============================================================================
// Request helpers
// =============================================================================

func nameParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "*")
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidPackage, "malformed package name %q", raw)
	}
	return name, nil
}

func versionQuery(r *http.Request) string {
	if v := r.URL.Query().Get("version"); v != "" {
		return v
	}
	return packages.DefaultVersion
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "%s must be an integer", key)
	}
	return n, nil
}

// =============================================================================
// Responses
// =============================================================================

type searchBody struct {
	Results []packages.SearchResult `json:"results"`
}

// healthzBody reports liveness plus the circuit state per upstream host.
type healthzBody struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Upstream map[string]string `json:"upstream"`
}

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as JSON with the status its code maps to. Errors
// without a code are reported as internal with no detail.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	msg := errors.UserMessage(err)
	if code == "" || code == errors.ErrCodeInternal {
		code = errors.ErrCodeInternal
		msg = "Internal server error"
	}
	writeJSON(w, code.Status(), errorBody{Error: msg, Code: code})
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey int

const requestIDKey ctxKey = 0

// requestID propagates an incoming X-Request-ID or assigns a new UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestID returns the request identifier stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", RequestID(r.Context()))
	})
}
