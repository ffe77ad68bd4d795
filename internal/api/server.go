package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/device-inventory/internal/auth"
	"github.com/nerrad567/device-inventory/internal/device"
	"github.com/nerrad567/device-inventory/internal/infrastructure/config"
	"github.com/nerrad567/device-inventory/internal/infrastructure/logging"
	"github.com/nerrad567/device-inventory/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure clients that can report
// their connection state.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Auth     *auth.Service
	Metrics  *metrics.Metrics // optional; /metrics is not mounted without it

	// Database is checked by GET /api/health; a failure reports 503.
	Database HealthChecker
	// Components are optional integrations (MQTT, InfluxDB) reported by
	// GET /api/health without affecting the status code.
	Components map[string]HealthChecker

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the inventory service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *device.Registry
	auth       *auth.Service
	metrics    *metrics.Metrics
	database   HealthChecker
	components map[string]HealthChecker
	version    string
	server     *http.Server
	hub        *Hub
	tickets    *ticketStore
	limiter    *clientLimiter     // nil when rate limiting is disabled
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		auth:       deps.Auth,
		metrics:    deps.Metrics,
		database:   deps.Database,
		components: deps.Components,
		version:    deps.Version,
		hub:        deps.ExternalHub,
		tickets:    newTicketStore(),
	}

	if rl := deps.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		s.limiter = newClientLimiter(rl.RequestsPerMinute)
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it; tests and
// embedding servers may serve it directly.
func (s *Server) Handler() http.Handler {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected), the ticket and
// limiter cleanup loops, and the HTTP listener in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)
	if s.limiter != nil {
		go s.limiter.cleanupLoop(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
