package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/middleware"
	"storefront-graphql/internal/observability"
	"storefront-graphql/internal/tlscert"
)

// buildGraphQLHandler wraps the graphql-go handler. The chain is:
//
//	request -> logging -> bearer auth -> request analysis -> metrics -> tracing -> graphql
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, schema *graphql.Schema, verifier middleware.TokenVerifier, metrics *observability.Metrics) http.Handler {
	var h http.Handler = handler.New(&handler.Config{
		Schema:   schema,
		Pretty:   true,
		GraphiQL: cfg.Server.GraphiQLEnabled,
	})
	h = middleware.GraphQLTracingMiddleware()(h)

	var authMetrics *observability.AuthMetrics
	if metrics != nil {
		h = middleware.GraphQLMetricsMiddleware(metrics.GraphQL)(h)
		authMetrics = metrics.Auth
		logger.Info("GraphQL metrics middleware enabled")
	}

	h = middleware.GraphQLRequestAnalysisMiddleware(cfg.Server.GraphQLMaxDepth)(h)
	h = middleware.BearerAuthMiddleware(verifier, authMetrics)(h)
	return middleware.LoggingMiddleware(logger)(h)
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db pinger, graphqlHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.Handle("GET /{$}", http.RedirectHandler("/graphql", http.StatusFound))
	mux.Handle("GET /health", healthHandler(db, cfg.Server.HealthCheckTimeout))
	if meterProvider != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		logger.Info("serving Prometheus metrics", slog.String("path", "/metrics"))
	}
	return mux
}

// wrapHTTPHandler applies the router-wide layers: OpenTelemetry HTTP
// instrumentation innermost, then CORS, then rate limiting.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, h http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		h = otelhttp.NewHandler(h, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		h = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(h)
	}

	if cfg.Server.RateLimitEnabled {
		h = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: true,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(h)
	}
	return h
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, logger *logging.Logger, h http.Handler, serverAddr string) (*http.Server, bool, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if !tlscert.Enabled(cfg.Server.TLSMode) {
		return srv, false, nil
	}

	tlsConfig, source, err := tlscert.ServerConfig(tlscert.Config{
		Mode:        tlscert.Mode(cfg.Server.TLSMode),
		CertFile:    cfg.Server.TLSCertFile,
		KeyFile:     cfg.Server.TLSKeyFile,
		AutoCertDir: cfg.Server.TLSAutoCertDir,
	}, logger.Logger)
	if err != nil {
		return nil, false, err
	}
	srv.TLSConfig = tlsConfig
	logger.Info("TLS enabled",
		slog.String("mode", cfg.Server.TLSMode),
		slog.String("cert_source", source))
	return srv, true, nil
}

// startServer serves in the background. The returned channel receives the
// error if the listener stops for any reason other than Shutdown.
func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, tlsEnabled bool) chan error {
	scheme, serve := "http", srv.ListenAndServe
	if tlsEnabled {
		scheme, serve = "https", func() error { return srv.ListenAndServeTLS("", "") }
	}

	attrs := []slog.Attr{
		slog.String("url", scheme+"://"+srv.Addr+"/graphql"),
		slog.Int("graphql_max_depth", cfg.Server.GraphQLMaxDepth),
		slog.Bool("graphiql", cfg.Server.GraphiQLEnabled),
		slog.Bool("require_staff", cfg.Server.Auth.RequireStaff),
	}
	if cfg.Server.RateLimitEnabled {
		attrs = append(attrs, slog.Group("rate_limit",
			slog.Float64("rps", cfg.Server.RateLimitRPS),
			slog.Int("burst", cfg.Server.RateLimitBurst)))
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "storefront listening", attrs...)
		if err := serve(); !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// pinger is the part of *sql.DB the health check needs.
type pinger interface {
	PingContext(ctx context.Context) error
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// healthHandler reports 200 while the database answers a ping within timeout
// and 503 otherwise.
func healthHandler(db pinger, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status, code := healthStatus{Status: "healthy", Database: "ok"}, http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			logging.FromContext(r.Context()).Error("database ping failed", slog.String("error", err.Error()))
			status, code = healthStatus{Status: "unhealthy", Database: "failed"}, http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
