package cmd

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/finwatch/sentinel/pkg/otelhelper"
)

// NewTracer returns an OTLP tracer when tracing is enabled, nil otherwise.
// Consumers treat a nil tracer as tracing disabled.
func NewTracer(ctx context.Context, logger *slog.Logger, serviceName string, enabled bool) (trace.Tracer, error) {
	if !enabled {
		return nil, nil
	}

	tracer, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "OpenTelemetry tracing enabled", "service", serviceName)

	return tracer, nil
}
