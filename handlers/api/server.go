package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"tubetext/config"
	"tubetext/middleware"
	"tubetext/proxy"
	"tubetext/services/media"
	"tubetext/storage"

	"github.com/sirupsen/logrus"
)

type Server struct {
	media     *MediaHandler
	proxies   *ProxyHandler
	config    *config.Config
	logger    *logrus.Logger
	server    *http.Server
	startTime time.Time
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// WithServices sets up the handlers with the provided services
func WithServices(mediaSvc media.Service, store *storage.Store, pool *proxy.Pool) ServerOption {
	return func(s *Server) {
		s.media = NewMediaHandler(mediaSvc, store)
		s.proxies = NewProxyHandler(pool)
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// routes sets up all the routes for the API
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.addV1Routes(mux)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.middleware(mux)
}

// addV1Routes adds all the v1 API routes
func (s *Server) addV1Routes(mux *http.ServeMux) {
	const v1Prefix = "/api/v1"

	// Download endpoints
	mux.HandleFunc("POST "+v1Prefix+"/download", s.media.HandleCreateDownload)
	mux.HandleFunc("GET "+v1Prefix+"/download/status/{id}", s.media.HandleGetStatus)
	mux.HandleFunc("GET "+v1Prefix+"/download/file/{filename}", s.media.HandleGetFile)
	mux.HandleFunc("GET "+v1Prefix+"/download/list", s.media.HandleListFiles)

	// Transcription endpoints
	mux.HandleFunc("POST "+v1Prefix+"/transcribe", s.media.HandleCreateTranscribe)
	mux.HandleFunc("GET "+v1Prefix+"/transcribe/status/{id}", s.media.HandleGetStatus)

	// Proxy pool endpoints
	mux.HandleFunc("GET "+v1Prefix+"/proxies/status", s.proxies.HandleStatus)
	mux.HandleFunc("POST "+v1Prefix+"/proxies/refresh", s.proxies.HandleRefresh)
}

// middleware sets up the middleware chain
func (s *Server) middleware(handler http.Handler) http.Handler {
	var rateLimiter middleware.RateLimiter
	if s.config.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
		)
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(s.config.CORS),
		middleware.Timeout(s.config.RequestTimeout),
	}

	if rateLimiter != nil {
		middlewares = append(middlewares, rateLimiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   s.config.Version,
		"uptime":    time.Since(s.startTime).String(),
	}

	if s.config.Debug {
		status["debug"] = true
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": m.Alloc,
			"total":     m.TotalAlloc,
			"system":    m.Sys,
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}
