package emit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelLifecycleBus wraps another LifecycleEventBus, recording each
// publication as a span so lifecycle events show up alongside the rest
// of a run's distributed trace. Subscribe is delegated unchanged.
type OTelLifecycleBus struct {
	inner  LifecycleEventBus
	tracer trace.Tracer
}

// NewOTelLifecycleBus decorates inner with span recording under tracer.
func NewOTelLifecycleBus(inner LifecycleEventBus, tracer trace.Tracer) *OTelLifecycleBus {
	return &OTelLifecycleBus{inner: inner, tracer: tracer}
}

func (b *OTelLifecycleBus) Publish(ctx context.Context, topic string, event LifecycleEvent) error {
	spanCtx, span := b.tracer.Start(ctx, event.Event)
	defer span.End()
	span.SetAttributes(
		attribute.String("graphcore.topic", topic),
		attribute.String("graphcore.node_id", event.NodeID),
	)
	err := b.inner.Publish(spanCtx, topic, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (b *OTelLifecycleBus) Subscribe(ctx context.Context, topic string) (<-chan LifecycleEvent, func(), error) {
	return b.inner.Subscribe(ctx, topic)
}

func (b *OTelLifecycleBus) Close() error { return b.inner.Close() }
