package main

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/bft-labs/dispatch/pkg/log"
)

// logExporter writes finished spans to the debug log.
type logExporter struct {
	logger log.Logger
}

func newLogExporter(logger log.Logger) *logExporter {
	return &logExporter{logger: log.Named(logger, "trace")}
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.Debug("span",
			log.String("name", s.Name()),
			log.String("trace_id", s.SpanContext().TraceID().String()),
			log.String("span_id", s.SpanContext().SpanID().String()),
			log.Duration("duration", s.EndTime().Sub(s.StartTime())),
			log.String("status", s.Status().Code.String()),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(ctx context.Context) error { return nil }
