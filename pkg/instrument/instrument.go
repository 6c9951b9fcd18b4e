// Package instrument bundles the logger and tracer handed to every component
// in the tree.
package instrument

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
)

// Instrumentation is a handle for logging and tracing. The zero value is not
// usable; use New or Noop.
type Instrumentation struct {
	// Name is a dotted path describing where the handle was derived from.
	Name   string
	Logger *log.Logger
	Tracer trace.Tracer
	// Debug enables Debugf output.
	Debug bool
}

// Noop discards all logging and tracing.
var Noop = Instrumentation{
	Name:   "noop",
	Logger: logutil.Discard,
	Tracer: noop.NewTracerProvider().Tracer("noop"),
}

// New creates an Instrumentation with a logger from logutil and a tracer from
// the global OpenTelemetry provider.
func New(name string) Instrumentation {
	return Instrumentation{
		Name:   name,
		Logger: logutil.GetLogger("[" + name + "] "),
		Tracer: otel.Tracer(name),
	}
}

// Child derives a handle for a sub-scope. The logger is shared; the name is
// extended and used as the span name prefix.
func (i Instrumentation) Child(name string) Instrumentation {
	i.Name = i.Name + "." + name
	return i
}

// Debugf logs only when Debug is set.
func (i Instrumentation) Debugf(format string, args ...any) {
	if i.Debug {
		i.Logger.Printf(format, args...)
	}
}

// Start starts a span named after the handle and op. The returned function
// ends the span, recording err if it is non-nil.
func (i Instrumentation) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := i.Tracer.Start(ctx, i.Name+"."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
