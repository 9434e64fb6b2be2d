package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront-graphql/internal/logging"
)

const tracerName = "storefront-graphql/graphql"

// GraphQLTracingMiddleware wraps GraphQL execution in a graphql.execute span
// and adds the trace and span IDs to the request logger. It needs the
// analysis middleware ahead of it.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metadata, ok := queryMetadataFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer(tracerName).Start(r.Context(), "graphql.execute",
				trace.WithAttributes(
					attribute.String("graphql.operation.name", metadata.operationName),
					attribute.String("graphql.operation.type", metadata.operationType),
					attribute.Int("graphql.document.field_count", metadata.fieldCount),
					attribute.Int("graphql.document.depth", metadata.selectionDepth),
					attribute.Int("graphql.document.variable_count", metadata.variableCount),
				),
			)
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
