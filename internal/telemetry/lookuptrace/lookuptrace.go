// Package lookuptrace wraps a caller-supplied call (a single operation
// or a whole batch; cmd/benchmark wraps its bulk insert and its
// concurrent lookups) in a span carrying the hop count the call reports
// and the protocol name, so a benchmark run emits a trace timeline of
// hop counts in addition to the aggregated stats. With no RPC boundary
// to cross, the caller opens the span directly around the call.
package lookuptrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dhtcompare/lookuptrace"

var tracer = otel.Tracer(tracerName)

// Trace runs fn inside a span named after op (e.g. "insert", "lookup"),
// recording the protocol name and the hop count fn returns as span
// attributes.
func Trace(ctx context.Context, protocol, op string, fn func(context.Context) (hops int, err error)) (int, error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("dht.protocol", protocol),
	))
	defer span.End()

	hops, err := fn(ctx)
	span.SetAttributes(attribute.Int("dht.hops", hops))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return hops, err
}
