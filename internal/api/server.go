package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-mapper/internal/entity"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mapper/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mapper/internal/smartrest"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second

	// healthCheckTimeout bounds each dependency probe.
	healthCheckTimeout = 2 * time.Second
)

// HealthChecker is implemented by dependencies probed by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Operations reports running operation routines.
type Operations interface {
	InFlight() int
}

// Entities lists registered entities.
type Entities interface {
	MainExternalID() string
	Children() []entity.Snapshot
	SnapshotByExternalID(xid string) (entity.Snapshot, error)
	Count() int
}

// Capabilities reports what an entity announced to the cloud.
type Capabilities interface {
	SupportedOperations(snap entity.Snapshot) ([]string, error)
	ValueTypes(externalID string, op smartrest.Operation) []string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Version  string
	MQTT     HealthChecker
	Database HealthChecker

	Operations   Operations
	Entities     Entities
	Capabilities Capabilities

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP status API of the mapper.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	version      string
	mqtt         HealthChecker
	db           HealthChecker
	operations   Operations
	entities     Entities
	capabilities Capabilities
	metrics      http.Handler
	startTime    time.Time
	server       *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, entities, capabilities, operations)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entities == nil || deps.Capabilities == nil {
		return nil, fmt.Errorf("entity registry and capability registrar are required")
	}
	if deps.Operations == nil {
		return nil, fmt.Errorf("operation handler is required")
	}

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		version:      deps.Version,
		mqtt:         deps.MQTT,
		db:           deps.Database,
		operations:   deps.Operations,
		entities:     deps.Entities,
		capabilities: deps.Capabilities,
		metrics:      deps.Metrics,
		startTime:    time.Now(),
	}, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
