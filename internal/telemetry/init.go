// Package telemetry builds the in-process tracer used to record hop
// counts for experimental protocol comparison. The simulation never
// crosses a process boundary, so there is no interceptor chain and no
// remote collector: a single stdout exporter is enough to emit a trace
// timeline for a benchmark run.
package telemetry

import (
	"context"
	"fmt"

	"dhtcompare/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Init builds and installs the global TracerProvider for cfg, returning
// a shutdown function the caller must invoke before exiting. When
// tracing is disabled, Init installs nothing and returns a no-op
// shutdown.
func Init(cfg config.TelemetryConfig, serviceName string) (func(context.Context) error, error) {
	if !cfg.Tracing.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Tracing.Exporter != "stdout" {
		return nil, fmt.Errorf("telemetry: unsupported exporter %q (only \"stdout\" is available for an in-process simulation)", cfg.Tracing.Exporter)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: building stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Attrs builds the node/protocol span attributes (dht.protocol,
// dht.node). lookuptrace.Trace does not use it.
func Attrs(protocol, node string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("dht.protocol", protocol),
		attribute.String("dht.node", node),
	}
}
