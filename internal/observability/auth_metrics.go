package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics tracks token issuance and bearer token verification.
type AuthMetrics struct {
	tokensIssued          metric.Int64Counter
	credentialFailures    metric.Int64Counter
	tokenValidationErrors metric.Int64Counter
	unauthorizedAttempts  metric.Int64Counter
}

// InitAuthMetrics initializes authentication metrics.
func InitAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter(meterName + "/security")

	tokensIssued, err := meter.Int64Counter(
		"security.tokens.issued.total",
		metric.WithDescription("Total number of access tokens issued"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens issued counter: %w", err)
	}

	credentialFailures, err := meter.Int64Counter(
		"security.auth.failures.total",
		metric.WithDescription("Total number of rejected credential checks"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential failures counter: %w", err)
	}

	tokenValidationErrors, err := meter.Int64Counter(
		"security.token.validation_errors.total",
		metric.WithDescription("Total number of bearer token validation errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token validation errors counter: %w", err)
	}

	unauthorizedAttempts, err := meter.Int64Counter(
		"security.unauthorized.attempts.total",
		metric.WithDescription("Total number of mutations rejected for missing permissions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create unauthorized attempts counter: %w", err)
	}

	return &AuthMetrics{
		tokensIssued:          tokensIssued,
		credentialFailures:    credentialFailures,
		tokenValidationErrors: tokenValidationErrors,
		unauthorizedAttempts:  unauthorizedAttempts,
	}, nil
}

func (m *AuthMetrics) RecordTokenIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1)
}

// RecordCredentialFailure records a failed login. reason is e.g. unknown_user or bad_password.
func (m *AuthMetrics) RecordCredentialFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.credentialFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *AuthMetrics) RecordTokenValidationError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.tokenValidationErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", errorType)))
}

func (m *AuthMetrics) RecordUnauthorizedAttempt(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.unauthorizedAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
