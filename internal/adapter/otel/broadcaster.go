package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/provisr/internal/domain"
)

// TracingBroadcaster wraps a domain.Broadcaster with OpenTelemetry tracing,
// so cluster-wide notifications show up in the delete trace.
type TracingBroadcaster struct {
	next   domain.Broadcaster
	tracer trace.Tracer
}

// Compile-time check: TracingBroadcaster implements domain.Broadcaster.
var _ domain.Broadcaster = (*TracingBroadcaster)(nil)

// NewTracingBroadcaster creates a tracing decorator around the given broadcaster.
func NewTracingBroadcaster(next domain.Broadcaster) *TracingBroadcaster {
	return &TracingBroadcaster{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (b *TracingBroadcaster) Broadcast(ctx context.Context, msg domain.ClusterMessage) error {
	ctx, span := b.tracer.Start(ctx, "Broadcaster.Broadcast",
		trace.WithAttributes(
			attribute.String("message.kind", string(msg.Kind)),
			attribute.Int64("tenant.id", msg.TenantID),
			attribute.String("tenant.domain", msg.Domain),
		),
	)
	defer span.End()

	err := b.next.Broadcast(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
