// Package http serves the pitch API and the error log over HTTP.
// The server is also the host the error aggregator installs into: route
// handlers are components, so a panicking handler is reported through the
// error-boundary hook, and faults forwarded by browser clients arrive
// through the uncaught-fault hook.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/armorclaw/pitchscope/internal/metrics"
	"github.com/armorclaw/pitchscope/pkg/errors"
	"github.com/armorclaw/pitchscope/pkg/logger"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	RateLimit      float64 // requests per second, 0 disables limiting
	RateBurst      int
	ReadTimeout    time.Duration

	ToneSampleRate int
	ToneDuration   time.Duration

	MetricsPath string // empty disables /metrics
}

// StatsProvider reports the state of a background job
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Deps are the collaborators the server exposes
type Deps struct {
	Aggregator *errors.Aggregator
	Store      *errors.ErrorStore // optional
	Metrics    *metrics.Metrics   // optional
	Retention  StatsProvider      // optional
	Gatherer   prometheus.Gatherer
	Logger     *logger.Logger
}

// Server is the HTTP server for pitchscope
type Server struct {
	config     ServerConfig
	agg        *errors.Aggregator
	guard      *errors.Guard
	store      *errors.ErrorStore
	retention  StatsProvider
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *logger.Logger
	limiter    *rate.Limiter
	httpServer *http.Server

	mu            sync.RWMutex
	onBoundary    errors.ErrorHandler
	onWindow      errors.WindowErrorHandler
	provided      map[string]any
	clients       map[string]*streamClient
	handler       http.Handler
	handlerOnce   sync.Once
	listenAddress string
}

// NewServer creates a new HTTP server and installs the aggregator into it
func NewServer(config ServerConfig, deps Deps) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8440"
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.ToneDuration <= 0 {
		config.ToneDuration = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = logger.Global()
	}

	s := &Server{
		config:    config,
		agg:       deps.Aggregator,
		store:     deps.Store,
		retention: deps.Retention,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		logger:    deps.Logger.WithComponent("http"),
		provided:  make(map[string]any),
		clients:   make(map[string]*streamClient),
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	if s.agg != nil {
		s.guard = errors.NewGuard(s.agg)
		s.agg.Install(s, s)
	}

	return s
}

// SetErrorHandler implements errors.App
func (s *Server) SetErrorHandler(h errors.ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBoundary = h
}

// Provide implements errors.App; provided values reach handlers through
// the request context.
func (s *Server) Provide(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provided[key] = value
}

// SetOnError implements errors.Window
func (s *Server) SetOnError(h errors.WindowErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWindow = h
}

func (s *Server) boundaryHandler() errors.ErrorHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onBoundary
}

func (s *Server) windowHandler() errors.WindowErrorHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onWindow
}

func (s *Server) errorsHandle() (*errors.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.provided[errors.ProvideKey].(*errors.Handle)
	return h, ok && h != nil
}

// Handler returns the server's routing tree
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		mux := http.NewServeMux()

		s.route(mux, "GET /api/errors", handlerComponent("ErrorList"), s.handleListErrors)
		s.route(mux, "POST /api/errors", handlerComponent("ErrorReport"), s.handleReportError)
		s.route(mux, "DELETE /api/errors", handlerComponent("ErrorClear"), s.handleClearErrors)
		s.route(mux, "GET /api/errors/stats", handlerComponent("ErrorStats"), s.handleErrorStats)
		s.route(mux, "GET /api/pitch", handlerComponent("Pitch"), s.handlePitch)
		s.route(mux, "GET /api/note", handlerComponent("Note"), s.handleNote)
		s.route(mux, "GET /api/tone", handlerComponent("Tone"), s.handleTone)
		s.route(mux, "GET /ws/errors", streamComponent, s.handleErrorStream)
		mux.HandleFunc("GET /healthz", s.handleHealth)

		if s.config.MetricsPath != "" && s.gatherer != nil {
			mux.Handle("GET "+s.config.MetricsPath, metricsHandler(s.gatherer))
		}

		s.handler = s.corsMiddleware(s.rateLimitMiddleware(s.provideMiddleware(mux)))
	})
	return s.handler
}

// route registers fn as component vm. Panics inside fn are reported to the
// boundary hook with the route pattern as lifecycle info.
func (s *Server) route(mux *http.ServeMux, pattern string, vm errors.ComponentMeta, fn http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(vm.Name, s.recoverMiddleware(vm, pattern, fn)))
}

// sourceFile returns the file of its caller
func sourceFile() string {
	_, file, _, _ := runtime.Caller(1)
	return file
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listenAddress = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting http server", "addr", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server and disconnects stream clients
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()

	s.closeClients()

	if srv != nil {
		s.logger.Info("stopping http server")
		return srv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the address the server is listening on
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listenAddress != "" {
		return s.listenAddress
	}
	return s.config.Addr
}
