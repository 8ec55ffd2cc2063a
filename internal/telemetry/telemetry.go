package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Telemetry owns the global tracer provider. Spans export over OTLP gRPC when
// OTEL_EXPORTER_OTLP_ENDPOINT is set; without it tracing is a no-op so local
// runs need no collector.
type Telemetry struct {
	provider *sdktrace.TracerProvider
}

type TelemetryParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
}

func NewTelemetry(p TelemetryParams) *Telemetry {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		p.Logger.Info("OTLP endpoint not configured, tracing disabled")
		return &Telemetry{}
	}

	t := &Telemetry{}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			exporter, err := otlptracegrpc.New(ctx)
			if err != nil {
				p.Logger.Error("failed to create OTLP trace exporter", zap.Error(err))
				return err
			}

			resource, err := sdkresource.New(ctx,
				sdkresource.WithAttributes(semconv.ServiceName("todo-chat")),
			)
			if err != nil {
				return err
			}

			t.provider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(resource),
			)
			otel.SetTracerProvider(t.provider)
			p.Logger.Info("telemetry initialized")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if t.provider == nil {
				return nil
			}
			return t.provider.Shutdown(ctx)
		},
	})

	return t
}
