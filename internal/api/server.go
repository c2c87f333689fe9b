// Package api provides the HTTP REST API and WebSocket server for Sprinkler Core.
//
// It exposes device configuration, watering control, and system management
// endpoints to dashboards and automation clients.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/verdantlabs/sprinkler-core/internal/auth"
	"github.com/verdantlabs/sprinkler-core/internal/broker"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/config"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/database"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/logging"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/mqtt"
	"github.com/verdantlabs/sprinkler-core/internal/sprinkler"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Store     sprinkler.Repository
	Sessions  *broker.Registry
	Creds     *auth.Credentials
	Router    *sprinkler.Router
	Scheduler *sprinkler.Scheduler
	MQTT      *mqtt.Client // optional: enables WebSocket event relay
	DB        *database.DB // optional: enables pool stats in /system
	Version   string
}

// Server is the HTTP API server for Sprinkler Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	store     sprinkler.Repository
	sessions  *broker.Registry
	creds     *auth.Credentials
	router    *sprinkler.Router
	scheduler *sprinkler.Scheduler
	mqtt      *mqtt.Client
	db        *database.DB
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if deps.Creds == nil {
		return nil, fmt.Errorf("credential service is required")
	}
	if deps.Router == nil || deps.Scheduler == nil {
		return nil, fmt.Errorf("message router and scheduler are required")
	}
	// MQTT is optional — the WebSocket relay stays silent without it

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		store:     deps.Store,
		sessions:  deps.Sessions,
		creds:     deps.Creds,
		router:    deps.Router,
		scheduler: deps.Scheduler,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to the
// observer topics for real-time WebSocket broadcast, and launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	// Relay observer-topic events to WebSocket dashboards
	if err := s.subscribeEvents(); err != nil {
		s.logger.Warn("failed to subscribe to events for WebSocket", "error", err)
	}

	handler := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           handler,
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

	// Cancel background goroutines (hub, ticket cleanup)
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
