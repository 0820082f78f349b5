package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/estufa-core/internal/alert"
	"github.com/nerrad567/estufa-core/internal/device"
	"github.com/nerrad567/estufa-core/internal/infrastructure/config"
	"github.com/nerrad567/estufa-core/internal/infrastructure/logging"
	"github.com/nerrad567/estufa-core/internal/infrastructure/metrics"
	"github.com/nerrad567/estufa-core/internal/link"
	"github.com/nerrad567/estufa-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// LinkStatus reports broker link health. *link.Recorder implements it.
type LinkStatus interface {
	Status() link.Snapshot
	Topics(ctx context.Context) ([]link.TopicHealth, error)
}

// CommandSender publishes manual commands. *device.Dispatcher implements it.
type CommandSender interface {
	Send(ctx context.Context, req device.Request) (*device.Command, error)
}

// HealthChecker is anything that can report its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Readings telemetry.Reader
	Statuses device.StatusReader
	Alerts   alert.Reader
	Link     LinkStatus
	Commands CommandSender

	// DB is optional; when set, /health reports its state.
	DB HealthChecker

	// Hub is optional; the server creates and runs its own when nil.
	Hub     *Hub
	Metrics *metrics.Metrics
	Version string
}

// Server is the HTTP API server for Estufa Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	readings telemetry.Reader
	statuses device.StatusReader
	alerts   alert.Reader
	link     LinkStatus
	commands CommandSender
	db       HealthChecker

	hub         *Hub
	externalHub bool
	metrics     *metrics.Metrics
	version     string
	startTime   time.Time

	server *http.Server
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Readings == nil:
		return nil, fmt.Errorf("readings reader is required")
	case deps.Statuses == nil:
		return nil, fmt.Errorf("status reader is required")
	case deps.Alerts == nil:
		return nil, fmt.Errorf("alert reader is required")
	case deps.Link == nil:
		return nil, fmt.Errorf("link status is required")
	case deps.Commands == nil:
		return nil, fmt.Errorf("command sender is required")
	case deps.Security.JWT.Secret == "":
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		readings:  deps.Readings,
		statuses:  deps.Statuses,
		alerts:    deps.Alerts,
		link:      deps.Link,
		commands:  deps.Commands,
		db:        deps.DB,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger, deps.Metrics)
	}

	return s, nil
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub when the server owns it and launches the
// HTTP listener in a background goroutine. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
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

// HealthCheck verifies the API server is running and responsive.
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
