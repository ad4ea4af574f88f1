package structsock

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/chrisboulton/structsock"

// Tracer wraps middleware so that every invocation is recorded as an
// OpenTelemetry span.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer from tp. A nil tp uses the global provider.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		return &Tracer{tracer: otel.Tracer(tracerName)}
	}
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

// Inbound wraps h. The handler runs with the span's context.
func (t *Tracer) Inbound(h InboundHandler) InboundHandler {
	name := handlerName(h)
	return InboundFunc(func(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error) {
		ctx, span := t.tracer.Start(ctx, "structsock.inbound",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("structsock.handler", name),
				attribute.Int64("structsock.sequence", int64(meta.Sequence)),
				attribute.String("structsock.message.type", msg.Type.String()),
				attribute.Int("structsock.message.size", len(msg.Data)),
			),
		)
		defer span.End()

		res, err := h.HandleInbound(ctx, msg, meta)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}

		span.SetAttributes(attribute.Bool("structsock.handled", res.Handled))
		span.SetStatus(codes.Ok, "")
		return res, nil
	})
}

// Outbound wraps h.
func (t *Tracer) Outbound(h OutboundHandler) OutboundHandler {
	name := handlerName(h)
	return OutboundFunc(func(ctx context.Context, msg Message) (Message, bool, error) {
		ctx, span := t.tracer.Start(ctx, "structsock.outbound",
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(
				attribute.String("structsock.handler", name),
				attribute.String("structsock.message.type", msg.Type.String()),
				attribute.Int("structsock.message.size", len(msg.Data)),
			),
		)
		defer span.End()

		out, ok, err := h.HandleOutbound(ctx, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, ok, err
		}

		span.SetAttributes(attribute.Bool("structsock.swallowed", !ok))
		span.SetStatus(codes.Ok, "")
		return out, ok, nil
	})
}

func handlerName(h any) string {
	return fmt.Sprintf("%T", h)
}
