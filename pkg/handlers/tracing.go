package handlers

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/dispatch/pkg/pipeline"
)

const tracerName = "github.com/bft-labs/dispatch/pkg/handlers"

// Tracing starts one server span per request. Incoming trace context is
// extracted with the global propagator.
type Tracing struct {
	pipeline.HandlerBase
	tracer trace.Tracer
}

// NewTracing creates a tracing handler. A nil provider selects the global
// one.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	h := &Tracing{tracer: tp.Tracer(tracerName)}
	h.SetAsyncSupported(true)
	return h
}

func (h *Tracing) Invoke(w http.ResponseWriter, r *http.Request) error {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	container := ownerLabel(h)
	ctx, span := h.tracer.Start(ctx, r.Method+" "+container,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("server.address", r.Host),
			attribute.String("dispatch.container", container),
		),
	)
	defer span.End()

	sw := WrapWriter(w)
	err := h.InvokeNext(sw, r.WithContext(ctx))

	status := effectiveStatus(sw, err)
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if id := RequestIDFromContext(r.Context()); id != "" {
		span.SetAttributes(attribute.String("dispatch.request_id", id))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	return err
}
