package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "storefront-graphql"

// GraphQLMetrics holds request-level metrics for the /graphql endpoint.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
}

// InitGraphQLMetrics initializes GraphQL request metrics.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL responses carrying top-level errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation_type", operationType)))
	}
}

func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// MutationMetrics counts form mutation executions by outcome.
type MutationMetrics struct {
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// InitMutationMetrics initializes mutation metrics.
func InitMutationMetrics() (*MutationMetrics, error) {
	meter := otel.Meter(meterName)

	executions, err := meter.Int64Counter(
		"graphql.mutation.executions.total",
		metric.WithDescription("Total number of mutation executions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation execution counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"graphql.mutation.duration",
		metric.WithDescription("Duration of mutation executions in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation duration histogram: %w", err)
	}

	return &MutationMetrics{executions: executions, duration: duration}, nil
}

// RecordMutation records one execution. outcome is one of success, invalid,
// not_found, denied or error.
func (m *MutationMetrics) RecordMutation(ctx context.Context, mutation, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mutation", mutation),
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.executions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// Metrics bundles every custom instrument the server records.
type Metrics struct {
	GraphQL   *GraphQLMetrics
	Mutations *MutationMetrics
	Auth      *AuthMetrics
}

// InitMetrics initializes all custom metrics against the global meter provider.
func InitMetrics(logger *slog.Logger) (*Metrics, error) {
	graphQL, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}
	mutations, err := InitMutationMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mutation metrics: %w", err)
	}
	auth, err := InitAuthMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth metrics: %w", err)
	}

	logger.Info("custom metrics initialized")
	return &Metrics{GraphQL: graphQL, Mutations: mutations, Auth: auth}, nil
}
