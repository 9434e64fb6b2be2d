// Package serverapp owns the storefront server lifecycle: it connects the
// database, builds the GraphQL schema and HTTP stack, and tears everything
// down in reverse order.
package serverapp

import (
	"database/sql"
	"errors"
	"net/http"
	"sync"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/observability"
)

// App owns runtime resources for the storefront-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	metrics        *observability.Metrics

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	schema  graphql.Schema
	handler http.Handler

	serverAddr string
	srv        *http.Server
	tlsEnabled bool

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
