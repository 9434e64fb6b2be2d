package mutation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func startMutationSpan(ctx context.Context, meta *Meta) (context.Context, trace.Span) {
	tracer := otel.Tracer("storefront-graphql/mutation")
	ctx, span := tracer.Start(ctx, "graphql.mutation."+meta.Name)
	span.SetAttributes(
		attribute.String("graphql.mutation.name", meta.Name),
		attribute.String("graphql.mutation.model", meta.Model),
		attribute.String("graphql.mutation.kind", meta.Kind.String()),
	)
	return ctx, span
}

func finishMutationSpan(span trace.Span, err error, outcome string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("graphql.mutation.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
